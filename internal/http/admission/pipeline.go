// Package admission runs the ordered stages every request passes before routing.
package admission

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type outcomeKind int

const (
	proceed outcomeKind = iota
	respond
	fail
)

// Outcome is what a stage decides: continue, answer the request, or fail it.
type Outcome struct {
	kind   outcomeKind
	status int
	body   any
	err    error
}

func Next() Outcome { return Outcome{kind: proceed} }

// Respond short-circuits with status and a JSON body; a nil body writes headers only.
func Respond(status int, body any) Outcome {
	return Outcome{kind: respond, status: status, body: body}
}

// Fail hands err to the pipeline's error responder.
func Fail(err error) Outcome { return Outcome{kind: fail, err: err} }

func (o Outcome) IsNext() bool { return o.kind == proceed }
func (o Outcome) Status() int  { return o.status }
func (o Outcome) Body() any    { return o.body }
func (o Outcome) Err() error   { return o.err }
func (o Outcome) Failed() bool { return o.kind == fail }

type Completion struct {
	Status   int
	Bytes    int
	Duration time.Duration
}

// Exchange is the state one request carries through the stages.
type Exchange struct {
	Request *http.Request
	Start   time.Time

	header http.Header
	onDone []func(*Exchange, Completion)
}

func NewExchange(r *http.Request, header http.Header) *Exchange {
	return &Exchange{Request: r, Start: time.Now(), header: header}
}

// Header is the response header map.
func (e *Exchange) Header() http.Header { return e.header }

// OnComplete registers fn to run after the response has been written.
func (e *Exchange) OnComplete(fn func(*Exchange, Completion)) {
	e.onDone = append(e.onDone, fn)
}

type Stage interface {
	Name() string
	Admit(ex *Exchange) Outcome
}

type stageFunc struct {
	name string
	fn   func(*Exchange) Outcome
}

func (s stageFunc) Name() string               { return s.name }
func (s stageFunc) Admit(ex *Exchange) Outcome { return s.fn(ex) }

func StageFunc(name string, fn func(*Exchange) Outcome) Stage {
	return stageFunc{name: name, fn: fn}
}

type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

type Pipeline struct {
	stages  []Stage
	onError ErrorResponder
}

func New(onError ErrorResponder, stages ...Stage) *Pipeline {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	return &Pipeline{stages: stages, onError: onError}
}

func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Handler has the chi middleware signature so it can sit in front of a router.
func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ex := NewExchange(r, ww.Header())
		defer ex.complete(ww)

		for _, stage := range p.stages {
			out := stage.Admit(ex)
			switch {
			case out.IsNext():
				continue
			case out.Failed():
				p.onError(ww, ex.Request, fmt.Errorf("%s: %w", stage.Name(), out.Err()))
				return
			default:
				writeOutcome(ww, out)
				return
			}
		}

		next.ServeHTTP(ww, ex.Request)
	})
}

func (e *Exchange) complete(ww middleware.WrapResponseWriter) {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	c := Completion{Status: status, Bytes: ww.BytesWritten(), Duration: time.Since(e.Start)}
	for _, fn := range e.onDone {
		fn(e, c)
	}
}

func writeOutcome(w http.ResponseWriter, out Outcome) {
	if out.Body() == nil {
		w.WriteHeader(out.Status())
		return
	}
	data, err := json.Marshal(out.Body())
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.Status())
	_, _ = w.Write(data)
}
