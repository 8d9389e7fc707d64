package hills

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hillshade/internal/dem"
)

const (
	// ReadingThreadsDefault is the number of extra reader goroutines per
	// pipeline run; the caller's goroutine always reads as well.
	ReadingThreadsDefault = 1

	// ComputingThreadsDefault is the number of worker goroutines doing
	// the shade computations per pipeline run.
	ComputingThreadsDefault = 1

	// elementsPerTaskDefault is the approximate number of unit elements
	// each compute task processes.
	elementsPerTaskDefault = 16000
)

// unitKernel converts one unit element, the 2×2 sample window around an
// imaginary centre, into output bytes. The returned index is where the
// next element of the same row starts; the kernel owns the byte layout.
type unitKernel interface {
	ProcessUnitElement(nw, sw, se, ne, metersPerElement float64, outputIx int, params *ComputingParams) int
}

// ComputingParams is the per-pipeline parameter bundle handed to every
// task. Built once per reader, never mutated afterwards.
type ComputingParams struct {
	Output        []byte
	InputAxisLen  int
	OutputAxisLen int
	OutputWidth   int

	// ResolutionFactor is OutputAxisLen/InputAxisLen, at least 1: the
	// sub-sampling case is handled by decimating the source instead.
	ResolutionFactor int

	LineBufferSize           int
	Padding                  int
	NorthUnitDistancePerLine float64
	SouthUnitDistancePerLine float64

	source      sampleSource
	awaiter     *awaiter
	activeTasks *atomic.Int32
	paced       bool
	inputPool   *shortPool
	linePool    *shortPool
}

func (p *ComputingParams) metersPerElement(line int) float64 {
	return p.SouthUnitDistancePerLine*float64(line) + p.NorthUnitDistancePerLine*float64(p.InputAxisLen-line)
}

// threadedShader runs the parallel producer/consumer raster pipeline:
// 1+N reader tasks stream DEM samples into up to C compute tasks, with
// the number of queued-or-running tasks capped so readers throttle
// themselves instead of buffering the whole tile.
type threadedShader struct {
	readingThreads   int
	computingThreads int
	elementsPerTask  int
	stopSignal       atomic.Bool
	logger           *zap.Logger

	// onReadingPaced, when set, is called each time a reader had to wait
	// for a compute task to finish.
	onReadingPaced func(activeTasks int)
}

func (s *threadedShader) init(readingThreads, computingThreads int, logger *zap.Logger) {
	if readingThreads < 0 {
		readingThreads = 0
	}
	if computingThreads < 0 {
		computingThreads = 0
	}
	s.readingThreads = readingThreads
	s.computingThreads = computingThreads
	s.elementsPerTask = elementsPerTaskDefault
	s.logger = logger
}

// Stop makes every task loop exit at its next check. The output buffer is
// left consistent but incomplete; callers discard it.
func (s *threadedShader) Stop() {
	s.stopSignal.Store(true)
}

// Continue clears a previous stop signal.
func (s *threadedShader) Continue() {
	s.stopSignal.Store(false)
}

func (s *threadedShader) IsStopped() bool {
	return s.stopSignal.Load()
}

func (s *threadedShader) isNotStopped() bool {
	return !s.stopSignal.Load()
}

// maxActiveTasks caps queued-or-running compute tasks per pipeline run.
func (s *threadedShader) maxActiveTasks() int {
	return (1 + 2*s.computingThreads) * (1 + s.readingThreads)
}

// shade runs the pipeline over the file and returns the padded output
// grid. inputAxisLen is the effective axis length after decimation by
// stride; outputAxisLen is inputAxisLen times the resolution factor.
func (s *threadedShader) shade(file dem.File, kernel unitKernel, inputAxisLen, outputAxisLen, padding, stride int, northLat, southLat float64) []byte {
	outputWidth := outputAxisLen + 2*padding
	lineBufferSize := inputAxisLen + 1
	output := make([]byte, outputWidth*outputWidth)

	if !s.isNotStopped() {
		return output
	}

	readingTasks := 1 + s.readingThreads
	if !file.SupportsSkip() {
		readingTasks = 1
	}

	computingTasks := 1
	if s.computingThreads > 0 {
		computingTasks = inputAxisLen * inputAxisLen / s.elementsPerTask
		if computingTasks > inputAxisLen/2 {
			computingTasks = inputAxisLen / 2
		}
		if computingTasks < 1 {
			computingTasks = 1
		}
		if computingTasks < readingTasks {
			computingTasks = readingTasks
		}
	}
	// Non-final compute tasks read their first and last rows separately,
	// so every task needs at least two rows.
	if computingTasks > 1 && inputAxisLen/computingTasks < 2 {
		computingTasks = inputAxisLen / 2
		if computingTasks < 1 {
			computingTasks = 1
		}
	}
	if readingTasks > computingTasks {
		readingTasks = computingTasks
	}

	linesPerTask := inputAxisLen / computingTasks
	tasksPerReader := computingTasks / readingTasks

	var activeTasks atomic.Int32
	inputPool := newShortPool(1 + s.maxActiveTasks())
	linePool := newShortPool(1 + s.maxActiveTasks())

	pool := newWorkerPool(s.computingThreads, computingTasks)
	defer pool.Close()

	rawAxisLen := inputAxisLen * stride

	runReader := func(readerIx int) {
		taskFrom := tasksPerReader * readerIx
		taskTo := taskFrom + tasksPerReader
		if readerIx == readingTasks-1 {
			taskTo = computingTasks
		}

		source, err := openSource(file, rawAxisLen, stride, linesPerTask*taskFrom)
		if err != nil {
			s.logger.Warn("Failed to open DEM stream", zap.String("file", file.Name()), zap.Error(err))
			return
		}
		defer source.Close()

		params := &ComputingParams{
			Output:                   output,
			InputAxisLen:             inputAxisLen,
			OutputAxisLen:            outputAxisLen,
			OutputWidth:              outputWidth,
			ResolutionFactor:         outputAxisLen / inputAxisLen,
			LineBufferSize:           lineBufferSize,
			Padding:                  padding,
			NorthUnitDistancePerLine: latUnitDistance(northLat, inputAxisLen) / float64(inputAxisLen),
			SouthUnitDistancePerLine: latUnitDistance(southLat, inputAxisLen) / float64(inputAxisLen),
			source:                   source,
			awaiter:                  newAwaiter(),
			activeTasks:              &activeTasks,
			paced:                    s.computingThreads > 0,
			inputPool:                inputPool,
			linePool:                 linePool,
		}

		s.readTask(kernel, pool, params, taskFrom, taskTo, computingTasks, linesPerTask)
	}

	var group errgroup.Group
	for readerIx := 0; readerIx < readingTasks-1; readerIx++ {
		group.Go(func() error {
			runReader(readerIx)
			return nil
		})
	}
	runReader(readingTasks - 1)
	group.Wait()

	return output
}

// paceReading throttles a reader while too many compute tasks are queued
// or running.
func (s *threadedShader) paceReading(params *ComputingParams) {
	if !params.paced {
		return
	}

	max := int32(s.maxActiveTasks())
	if !atomicIncreaseIfLess(params.activeTasks, max) {
		if s.onReadingPaced != nil {
			s.onReadingPaced(int(params.activeTasks.Load()))
		}

		params.awaiter.DoWait(func() bool {
			return atomicIncreaseIfLess(params.activeTasks, max)
		})
	}
}

// readTask is the body of one reader: it prepares the input for its span
// of compute tasks, spawning each as its data becomes ready. All but the
// last compute task go to the pool; the last runs on the reader itself and
// streams its rows directly instead of buffering them.
func (s *threadedShader) readTask(kernel unitKernel, pool *workerPool, params *ComputingParams, taskFrom, taskTo, computingTasks, linesPerTask int) {
	inputAxisLen := params.InputAxisLen
	lineBufferSize := params.LineBufferSize
	source := params.source

	var computeWG sync.WaitGroup

	lineBuffer := params.linePool.Get(lineBufferSize)
	var nextLineBuffer []int16

	for taskIx := taskFrom; taskIx < taskTo; taskIx++ {
		s.paceReading(params)

		if taskIx > taskFrom {
			lineBuffer = nextLineBuffer
			nextLineBuffer = nil
		} else {
			// The first row belongs to the previous task's span (or is
			// the northernmost row); read it into the line buffer.
			var last int16
			for col := 0; col < lineBufferSize; col++ {
				last = source.ReadValue(last)
				lineBuffer[col] = last
			}
		}

		lineFrom := 1 + linesPerTask*taskIx
		lineTo := lineFrom + linesPerTask - 1
		if taskIx == computingTasks-1 {
			lineTo = inputAxisLen
		}

		var input []int16
		if taskIx < taskTo-1 {
			input = params.inputPool.Get(lineBufferSize * (lineTo - lineFrom + 1))
			nextLineBuffer = params.linePool.Get(lineBufferSize)

			inputIx := 0

			// First row: the row above lives in the line buffer.
			for ; inputIx <= inputAxisLen && s.isNotStopped(); inputIx++ {
				input[inputIx] = source.ReadIndexed(lineBuffer, inputIx, 0)
			}

			for line := lineFrom + 1; line <= lineTo-1 && s.isNotStopped(); line++ {
				// Inner loop, critical for performance
				for col := 0; col <= inputAxisLen; col, inputIx = col+1, inputIx+1 {
					input[inputIx] = source.ReadIndexed(input, inputIx, lineBufferSize)
				}
			}

			// Last row is peeled off into a fresh line buffer for the
			// next task.
			for col := 0; col <= inputAxisLen && s.isNotStopped(); col, inputIx = col+1, inputIx+1 {
				point := source.ReadIndexed(input, inputIx, lineBufferSize)
				input[inputIx] = point
				nextLineBuffer[col] = point
			}
		}

		task := s.newComputeTask(kernel, params, lineFrom, lineTo, input, lineBuffer, &computeWG)

		computeWG.Add(1)
		if taskIx < taskTo-1 {
			pool.Post(task)
		} else {
			task()
		}
	}

	computeWG.Wait()
}

func (s *threadedShader) newComputeTask(kernel unitKernel, params *ComputingParams, lineFrom, lineTo int, input, lineBuffer []int16, wg *sync.WaitGroup) func() {
	return func() {
		defer func() {
			if params.paced {
				params.activeTasks.Add(-1)
			}
			params.awaiter.DoNotify()
			wg.Done()
		}()

		s.compute(kernel, params, lineFrom, lineTo, input, lineBuffer)
	}
}

// compute walks its rows as a 2×2 sliding window and feeds every unit
// element to the kernel, exactly once, in row-major order.
func (s *threadedShader) compute(kernel unitKernel, params *ComputingParams, lineFrom, lineTo int, input, lineBuffer []int16) {
	inputAxisLen := params.InputAxisLen
	resolutionFactor := params.ResolutionFactor

	// Two paddings (after possibly skipping rows) reach the start of the
	// next output line.
	outputIxIncrement := (resolutionFactor-1)*params.OutputWidth + 2*params.Padding

	outputIx := params.OutputWidth*params.Padding + params.Padding
	outputIx += resolutionFactor * (lineFrom - 1) * params.OutputWidth

	if input != nil {
		inputIx := 0

		// First line separately, against the line buffer.
		{
			nw := lineBuffer[inputIx]
			sw := input[inputIx]
			inputIx++

			metersPerElement := params.metersPerElement(lineFrom)

			for col := 1; col <= inputAxisLen && s.isNotStopped(); col++ {
				ne := lineBuffer[inputIx]
				se := input[inputIx]
				inputIx++

				outputIx = kernel.ProcessUnitElement(float64(nw), float64(sw), float64(se), float64(ne), metersPerElement, outputIx, params)

				nw, sw = ne, se
			}

			outputIx += outputIxIncrement
		}

		params.linePool.Recycle(lineBuffer)

		offsetInputIx := inputIx - params.LineBufferSize

		for line := lineFrom + 1; line <= lineTo && s.isNotStopped(); line++ {
			nw := input[offsetInputIx]
			offsetInputIx++
			sw := input[inputIx]
			inputIx++

			metersPerElement := params.metersPerElement(line)

			// Inner loop, critical for performance
			for col := 1; col <= inputAxisLen; col++ {
				ne := input[offsetInputIx]
				offsetInputIx++
				se := input[inputIx]
				inputIx++

				outputIx = kernel.ProcessUnitElement(float64(nw), float64(sw), float64(se), float64(ne), metersPerElement, outputIx, params)

				nw, sw = ne, se
			}

			outputIx += outputIxIncrement
		}

		params.inputPool.Recycle(input)
	} else {
		// Memory-optimised trailing task: stream rows directly through a
		// single circular line buffer.
		source := params.source
		lineBufferIx := 0

		for line := lineFrom; line <= lineTo && s.isNotStopped(); line++ {
			if lineBufferIx >= params.LineBufferSize {
				lineBufferIx = 0
			}

			nw := lineBuffer[lineBufferIx]
			sw := source.ReadValue(nw)
			lineBuffer[lineBufferIx] = sw
			lineBufferIx++

			metersPerElement := params.metersPerElement(line)

			// Inner loop, critical for performance
			for col := 1; col <= inputAxisLen; col++ {
				ne := lineBuffer[lineBufferIx]
				se := source.ReadValue(ne)
				lineBuffer[lineBufferIx] = se
				lineBufferIx++

				outputIx = kernel.ProcessUnitElement(float64(nw), float64(sw), float64(se), float64(ne), metersPerElement, outputIx, params)

				nw, sw = ne, se
			}

			outputIx += outputIxIncrement
		}

		params.linePool.Recycle(lineBuffer)
	}
}

// atomicIncreaseIfLess increments counter if its value is below max.
func atomicIncreaseIfLess(counter *atomic.Int32, max int32) bool {
	for {
		current := counter.Load()
		if current >= max {
			return false
		}
		if counter.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// workerPool runs compute tasks on a fixed set of goroutines. A nil pool
// (zero computing threads) runs every task inline on the submitter, and so
// does a closed one.
type workerPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func newWorkerPool(workers, queueLen int) *workerPool {
	if workers <= 0 {
		return nil
	}

	p := &workerPool{tasks: make(chan func(), queueLen)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

func (p *workerPool) Post(task func()) {
	if p == nil {
		task()
		return
	}

	p.mu.RLock()
	if !p.closed {
		select {
		case p.tasks <- task:
			p.mu.RUnlock()
			return
		default:
			// Queue full; run on the submitter rather than block.
		}
	}
	p.mu.RUnlock()

	task()
}

func (p *workerPool) Close() {
	if p == nil {
		return
	}

	p.mu.Lock()
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
