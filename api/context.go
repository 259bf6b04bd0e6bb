package api

import (
	"context"
	"time"

	"github.com/flanksource/commons/logger"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/httprequest"
	"github.com/flanksource/gid-seminars/utils"
)

// ScrapeContext carries everything a source needs while fetching: the
// request context, its configuration, a logger and an HTTP client bound to
// the source's retry policy.
type ScrapeContext struct {
	context.Context

	logger  logger.Logger
	source  v1.SourceConfig
	http    httprequest.Requester
	baseDir string
}

func NewScrapeContext(ctx context.Context, log logger.Logger) ScrapeContext {
	if log == nil {
		log = logger.StandardLogger()
	}
	return ScrapeContext{
		Context: ctx,
		logger:  log,
	}
}

func (ctx ScrapeContext) WithSource(source v1.SourceConfig) ScrapeContext {
	ctx.source = source
	return ctx
}

func (ctx ScrapeContext) WithHTTP(r httprequest.Requester) ScrapeContext {
	ctx.http = r
	return ctx
}

func (ctx ScrapeContext) WithLogger(log logger.Logger) ScrapeContext {
	ctx.logger = log
	return ctx
}

// WithBaseDir sets the directory that relative manifest paths resolve against.
func (ctx ScrapeContext) WithBaseDir(dir string) ScrapeContext {
	ctx.baseDir = dir
	return ctx
}

func (ctx ScrapeContext) WithContext(c context.Context) ScrapeContext {
	ctx.Context = c
	return ctx
}

func (ctx ScrapeContext) Logger() logger.Logger {
	return ctx.logger
}

func (ctx ScrapeContext) Source() v1.SourceConfig {
	return ctx.source
}

func (ctx ScrapeContext) HTTP() httprequest.Requester {
	return ctx.http
}

func (ctx ScrapeContext) BaseDir() string {
	return ctx.baseDir
}

// Now is the reference time for lookback windows and year inference.
func (ctx ScrapeContext) Now() time.Time {
	return utils.NaiveNow()
}

func (ctx ScrapeContext) Debugf(format string, args ...any) {
	ctx.logger.Debugf("[%s] "+format, append([]any{ctx.source.ID}, args...)...)
}

func (ctx ScrapeContext) Infof(format string, args ...any) {
	ctx.logger.Infof("[%s] "+format, append([]any{ctx.source.ID}, args...)...)
}

func (ctx ScrapeContext) Warnf(format string, args ...any) {
	ctx.logger.Warnf("[%s] "+format, append([]any{ctx.source.ID}, args...)...)
}

func (ctx ScrapeContext) Errorf(format string, args ...any) {
	ctx.logger.Errorf("[%s] "+format, append([]any{ctx.source.ID}, args...)...)
}
