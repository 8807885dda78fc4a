package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_dump     = "resty.dump"
)

// RestyOptions configures InstrumentResty.
type RestyOptions struct {
	// DumpDir, if set, is a directory that every response body is written to, the files
	// are named `<request id>.html`. This is how portal pages are captured for parser fixtures.
	DumpDir string
}

type instrumentResty struct {
	tel       API
	idcounter *uint64
	dumpDir   string
}

// InstrumentResty attaches request/response reporting to a resty client.
func InstrumentResty(client *resty.Client, tel API, opts RestyOptions) {
	var idcounter uint64
	i := instrumentResty{
		tel:       tel,
		idcounter: &idcounter,
		dumpDir:   opts.DumpDir,
	}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id uint64
	// startTime does not need to rely on chrono because it does not depend on the
	// absolute time, just the difference in time.
	startTime time.Time
}

func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()

	id := atomic.AddUint64(i.idcounter, 1)
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		startTime: time.Now(),
	})
	i.tel.ReportDebug(report_resty_request, id, req.Method, req.URL)

	req.SetContext(ctx)
	return nil
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	reqCtx, ok := res.Request.Context().Value(reqCtxKey).(reqCtx)
	if !ok {
		i.tel.ReportWarning(report_resty_response, fmt.Errorf("missing request context"), res.Request.URL)
		return nil
	}

	i.tel.ReportDebug(
		report_resty_response,
		reqCtx.id,
		time.Since(reqCtx.startTime).String(),
		res.Status(),
	)
	i.dump(reqCtx.id, res)

	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	var duration time.Duration
	reqCtx, ok := req.Context().Value(reqCtxKey).(reqCtx)
	if ok {
		duration = time.Since(reqCtx.startTime)
	}

	i.tel.ReportWarning(
		report_resty_response,
		err,
		req.Method,
		req.URL,
		duration,
	)
}

func (i instrumentResty) dump(id uint64, res *resty.Response) {
	if i.dumpDir == "" {
		return
	}
	err := os.MkdirAll(i.dumpDir, 0777)
	if err != nil {
		i.tel.ReportWarning(report_resty_dump, err, i.dumpDir)
		return
	}

	var header strings.Builder
	header.WriteString(fmt.Sprintf("<!-- %s %s -> %s -->\n", res.Request.Method, res.Request.URL, res.Status()))
	contents := header.String() + res.String()

	path := filepath.Join(i.dumpDir, fmt.Sprintf("%d.html", id))
	err = os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		i.tel.ReportWarning(report_resty_dump, err, path)
	}
}
