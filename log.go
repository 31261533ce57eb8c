// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"io"
	"strconv"
	"time"

	"github.com/valyala/fasttemplate"
)

// Prober receives per-request timing and outcome events, the binding point for metrics
// (spec §1 "dtrace" external collaborator, §6 "probes"). The metrics package implements this
// against Prometheus; NoopProber is the default when nothing is wired.
type Prober interface {
	Hit(method, vhost string, status int)
	Duration(method, vhost string, d time.Duration)
}

// NoopProber discards every event.
type NoopProber struct{}

func (NoopProber) Hit(string, string, int)              {}
func (NoopProber) Duration(string, string, time.Duration) {}

// DefaultAccessLogFormat mirrors the Apache combined log format spec §6 names as the access
// log's default template.
const DefaultAccessLogFormat = `${remote_ip} - - [${time}] "${method} ${uri} ${proto}" ${status} ${size} "${referer}" "${user_agent}" ${latency_human}`

// AccessLogger renders one access-log line per request from a fasttemplate template, the
// same templating library the middleware stack already depends on for request logging.
type AccessLogger struct {
	tmpl *fasttemplate.Template
}

// NewAccessLogger compiles format, or DefaultAccessLogFormat when format is empty.
func NewAccessLogger(format string) (*AccessLogger, error) {
	if format == "" {
		format = DefaultAccessLogFormat
	}
	t, err := fasttemplate.NewTemplate(format, "${", "}")
	if err != nil {
		return nil, err
	}
	return &AccessLogger{tmpl: t}, nil
}

// Line renders the access-log line for a request once its response has been emitted.
func (a *AccessLogger) Line(c *Context) string {
	req := c.Request()
	res := c.Response()
	return a.tmpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "remote_ip":
			return io.WriteString(w, c.IP())
		case "time":
			return io.WriteString(w, time.Now().Format("02/Jan/2006:15:04:05 -0700"))
		case "method":
			return io.WriteString(w, req.Method)
		case "uri":
			return io.WriteString(w, req.RequestURI)
		case "proto":
			return io.WriteString(w, req.Proto)
		case "status":
			return io.WriteString(w, strconv.Itoa(res.Status))
		case "size":
			return io.WriteString(w, strconv.FormatInt(res.Size, 10))
		case "referer":
			return io.WriteString(w, req.Referer())
		case "user_agent":
			return io.WriteString(w, req.UserAgent())
		case "latency_human":
			return io.WriteString(w, c.Elapsed().String())
		case "vhost":
			return io.WriteString(w, c.VHost())
		default:
			return io.WriteString(w, "-")
		}
	})
}
