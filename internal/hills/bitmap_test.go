package hills

import "testing"

func filledBitmap(width, padding int, fill byte) *ShadeBitmap {
	bytes := make([]byte, width*width)
	for i := range bytes {
		bytes[i] = fill
	}
	return MonoGraphicsFactory{}.CreateMonoBitmap(width, width, bytes, padding)
}

func TestCreateMonoBitmap(t *testing.T) {
	bitmap := filledBitmap(6, 1, 0)
	if bitmap == nil {
		t.Fatal("factory returned nil for a well-formed buffer")
	}
	if bitmap.Width() != 6 || bitmap.Height() != 6 || bitmap.Padding() != 1 {
		t.Errorf("bitmap geometry = %dx%d p=%d", bitmap.Width(), bitmap.Height(), bitmap.Padding())
	}
	if bitmap.SizeBytes() != 36 {
		t.Errorf("size = %d, want 36", bitmap.SizeBytes())
	}

	if got := (MonoGraphicsFactory{}).CreateMonoBitmap(6, 6, make([]byte, 10), 1); got != nil {
		t.Error("factory accepted a mis-sized buffer")
	}
}

func TestMergeBorders(t *testing.T) {
	const width = 6
	const padding = 1

	cases := []struct {
		name   string
		border Border
		// probe is a padding pixel that must receive source data, and
		// sourcePix the interior source pixel expected there.
		probeX, probeY   int
		sourceX, sourceY int
	}{
		{"west", BorderWest, 0, 2, width - 2, 2},
		{"east", BorderEast, width - 1, 2, 1, 2},
		{"north", BorderNorth, 2, 0, 2, width - 2},
		{"south", BorderSouth, 2, width - 1, 2, 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sink := filledBitmap(width, padding, 0)

			source := filledBitmap(width, padding, 0)
			for y := 0; y < width; y++ {
				for x := 0; x < width; x++ {
					source.gray.Pix[y*width+x] = byte(16*y + x)
				}
			}

			MergeSameSized(sink, source, c.border, padding)

			want := byte(16*c.sourceY + c.sourceX)
			if got := sink.gray.Pix[c.probeY*width+c.probeX]; got != want {
				t.Errorf("padding pixel (%d,%d) = %d, want source (%d,%d) = %d",
					c.probeX, c.probeY, got, c.sourceX, c.sourceY, want)
			}

			// The interior must be untouched.
			for y := padding; y < width-padding; y++ {
				for x := padding; x < width-padding; x++ {
					if got := sink.gray.Pix[y*width+x]; got != 0 {
						t.Fatalf("interior pixel (%d,%d) = %d, want 0", x, y, got)
					}
				}
			}
		})
	}
}

func TestMergeCornersUntouched(t *testing.T) {
	const width = 6
	const padding = 1

	sink := filledBitmap(width, padding, 0)
	source := filledBitmap(width, padding, 255)

	MergeSameSized(sink, source, BorderWest, padding)

	// The clip excludes the corner rows of the west stripe.
	if sink.gray.Pix[0] != 0 || sink.gray.Pix[(width-1)*width] != 0 {
		t.Error("corner pixels were written by a west merge")
	}
}
