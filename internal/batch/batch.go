// Package batch обрабатывает пакет изображений: проверяет лимиты клиента,
// отбраковывает неподходящие файлы и параллельно преобразует остальные,
// сохраняя порядок результатов.
package batch

import (
	"context"
	"encoding/base64"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/ratelimit"
	"github.com/sol1corejz/imgify/internal/stats"
	"github.com/sol1corejz/imgify/internal/transform"
	"github.com/sol1corejz/imgify/internal/validator"
)

// Коды ошибок уровня пакета.
const (
	CodeNoFiles        = "no_files_provided"
	CodeNoValidImages  = "no_valid_images"
	CodePartialTimeout = "partial_timeout"
)

// Transformer преобразует одно изображение.
type Transformer interface {
	Transform(ctx context.Context, data []byte, format string, req transform.Request) (transform.Output, error)
}

// Admitter проверяет и расходует лимиты клиента.
type Admitter interface {
	Admit(ctx context.Context, id ratelimit.Identity, batchSize int) (ratelimit.Decision, error)
}

// Request — параметры обработки пакета.
type Request struct {
	transform.Request
	// IncludeData — вернуть обработанные байты в base64.
	IncludeData bool
}

// Options настраивает оркестратор.
type Options struct {
	// Workers — число воркеров на пакет; по умолчанию runtime.NumCPU().
	Workers int
	// Timeout — предельное время обработки пакета; 0 отключает ограничение.
	Timeout time.Duration
	// CPU — общий для всех пакетов бюджет одновременных кодирований.
	// Если nil, создаётся семафор на runtime.NumCPU() слотов.
	CPU *semaphore.Weighted
}

// Orchestrator связывает валидатор, ограничитель и движок преобразований.
type Orchestrator struct {
	validator *validator.Validator
	limiter   Admitter
	engine    Transformer
	stats     *stats.Collector
	workers   int
	timeout   time.Duration
	cpu       *semaphore.Weighted
}

// New создаёт оркестратор. collector может быть nil.
func New(v *validator.Validator, limiter Admitter, engine Transformer, collector *stats.Collector, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.CPU == nil {
		opts.CPU = semaphore.NewWeighted(int64(runtime.NumCPU()))
	}
	if collector == nil {
		collector = stats.New()
	}
	return &Orchestrator{
		validator: v,
		limiter:   limiter,
		engine:    engine,
		stats:     collector,
		workers:   opts.Workers,
		timeout:   opts.Timeout,
		cpu:       opts.CPU,
	}
}

// Handle обрабатывает пакет items от клиента id.
//
// Порядок проверок: пустой пакет (422), лимиты по полному размеру пакета (429),
// затем проверка каждого файла. Если отклонены все файлы, возвращается 422 со
// списком причин. Остальные файлы обрабатываются параллельно; при истечении
// таймаута готовые результаты сохраняются, а незавершённые получают ошибку timeout.
func (o *Orchestrator) Handle(ctx context.Context, items []models.UploadItem, id ratelimit.Identity, req Request) (models.BatchResponse, error) {
	started := time.Now()

	if err := o.validator.CheckBatch(items); err != nil {
		return models.BatchResponse{}, apperrors.Validation(CodeNoFiles, "No images provided.")
	}

	decision, err := o.limiter.Admit(ctx, id, len(items))
	if err != nil {
		return models.BatchResponse{}, apperrors.Internal("rate_limit_unavailable", err)
	}
	if !decision.Allowed {
		o.stats.BatchRejected()
		logger.Log.Info("batch rejected by rate limiter",
			zap.String("client", id.Key),
			zap.String("reason", decision.Reason),
			zap.Int("batch_size", len(items)),
		)
		return models.BatchResponse{}, apperrors.RateLimited(decision.Reason, decision.Message, decision.RetryAfter, decision.Limits)
	}

	results := make([]models.ItemResult, len(items))
	jobs := make([]job, 0, len(items))
	var rejected []models.FieldError
	for i, verdict := range o.validator.Classify(items) {
		if !verdict.Valid {
			results[i] = models.Failure(items[i].Filename, verdict.Reason, verdict.Detail)
			rejected = append(rejected, models.FieldError{Filename: items[i].Filename, Reason: verdict.Reason})
			continue
		}
		jobs = append(jobs, job{index: i, item: items[i], format: verdict.Format})
	}

	if len(jobs) == 0 {
		o.stats.BatchRejected()
		return models.BatchResponse{}, apperrors.Validation(CodeNoValidImages, "None of the uploaded files can be processed.", rejected...)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	done := o.process(ctx, jobs, req, results)

	resp := models.BatchResponse{Results: results, Limits: &decision.Limits}
	for _, j := range jobs {
		if !done[j.index] {
			results[j.index] = models.Failure(j.item.Filename, transform.CodeTimeout, itemMessage(transform.CodeTimeout))
		}
		if results[j.index].Error == transform.CodeTimeout {
			resp.Error = CodePartialTimeout
		}
	}
	for _, r := range results {
		if !r.Failed() {
			resp.Success = true
			break
		}
	}
	resp.Elapsed = time.Since(started)

	o.stats.BatchDone(results)
	logger.Log.Info("batch processed",
		zap.String("client", id.Key),
		zap.String("op", string(req.Op)),
		zap.Int("images", len(items)),
		zap.Int("rejected", len(rejected)),
		zap.Duration("elapsed", resp.Elapsed),
		zap.String("error", resp.Error),
	)
	return resp, nil
}

// job — задание на преобразование с позицией файла в пакете.
type job struct {
	index  int
	item   models.UploadItem
	format string
}

// slot — результат, адресованный позиции в пакете.
type slot struct {
	index  int
	result models.ItemResult
}

// process запускает конвейер generator → fanOut → fanIn и раскладывает результаты
// по позициям. Возвращает признаки заполненных позиций.
func (o *Orchestrator) process(ctx context.Context, jobs []job, req Request, results []models.ItemResult) map[int]bool {
	doneCh := make(chan struct{})
	defer close(doneCh)

	inputCh := generator(doneCh, jobs)
	channels := o.fanOut(ctx, doneCh, inputCh, req, min(o.workers, len(jobs)))
	resultCh := fanIn(doneCh, channels...)

	done := make(map[int]bool, len(jobs))
	for {
		select {
		case <-ctx.Done():
			return done
		case res, ok := <-resultCh:
			if !ok {
				return done
			}
			results[res.index] = res.result
			done[res.index] = true
		}
	}
}

func generator(doneCh chan struct{}, jobs []job) chan job {
	inputCh := make(chan job)
	go func() {
		defer close(inputCh)
		for _, j := range jobs {
			select {
			case <-doneCh:
				return
			case inputCh <- j:
			}
		}
	}()
	return inputCh
}

func (o *Orchestrator) fanOut(ctx context.Context, doneCh chan struct{}, inputCh chan job, req Request, numWorkers int) []chan slot {
	channels := make([]chan slot, numWorkers)
	for i := 0; i < numWorkers; i++ {
		channels[i] = o.worker(ctx, doneCh, inputCh, req)
	}
	return channels
}

func (o *Orchestrator) worker(ctx context.Context, doneCh chan struct{}, inputCh chan job, req Request) chan slot {
	resultCh := make(chan slot)
	go func() {
		defer close(resultCh)
		for j := range inputCh {
			res := slot{index: j.index, result: o.run(ctx, j, req)}
			select {
			case <-doneCh:
				return
			case resultCh <- res:
			}
		}
	}()
	return resultCh
}

func fanIn(doneCh chan struct{}, resultChs ...chan slot) chan slot {
	finalCh := make(chan slot)
	var wg sync.WaitGroup

	for _, ch := range resultChs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range ch {
				select {
				case <-doneCh:
					return
				case finalCh <- res:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(finalCh)
	}()

	return finalCh
}

// run преобразует один файл, занимая слот общего бюджета CPU.
func (o *Orchestrator) run(ctx context.Context, j job, req Request) models.ItemResult {
	if err := o.cpu.Acquire(ctx, 1); err != nil {
		return models.Failure(j.item.Filename, transform.CodeTimeout, itemMessage(transform.CodeTimeout))
	}
	out, err := o.engine.Transform(ctx, j.item.Data, j.format, req.Request)
	o.cpu.Release(1)

	if err != nil {
		code := transform.Code(err)
		logger.Log.Warn("image transform failed",
			zap.String("filename", j.item.Filename),
			zap.String("format", j.format),
			zap.String("code", code),
			zap.Error(err),
		)
		return models.Failure(j.item.Filename, code, itemMessage(code))
	}

	res := models.Success(j.item.Filename, out.OriginalSize, out.OptimizedSize, out.Ratio)
	res.Format = out.Format
	res.OriginalFormat = out.OriginalFormat
	res.AlreadyOptimized = out.AlreadyOptimized
	res.UsedOriginal = out.UsedOriginal
	if req.IncludeData {
		res.Data = base64.StdEncoding.EncodeToString(out.Data)
	}
	return res
}

func itemMessage(code string) string {
	switch code {
	case transform.CodeDecode:
		return "Image data is corrupt or cannot be decoded."
	case transform.CodeEncode:
		return "Failed to encode the image."
	case transform.CodeUnsupportedFormat:
		return "Requested format is not supported."
	case transform.CodeTimeout:
		return "Processing timed out."
	default:
		return "Internal error while processing the image."
	}
}
