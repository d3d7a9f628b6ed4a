package logstore

import (
	"errors"
	"time"
)

// InstanceLabel is the label every detection log line is pushed with.
const InstanceLabel = "instance_id"

var ErrNoLabels = errors.New("at least one label is required")

type Writer interface {
	Write(timestamp *time.Time, log string) error
}

type TailOptions struct {
	Labels map[string]string
	Start  time.Time
	Limit  uint32
}

type QueryOptions struct {
	Labels map[string]string
	Start  time.Time
	End    time.Time
	Limit  uint32
}

type LogStore interface {
	Query(options QueryOptions, writer Writer, stopCh <-chan struct{}) error
	Tail(options TailOptions, writer Writer, stopCh <-chan struct{}) error
	Push(labels map[string]string, line string, t time.Time) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(timestamp *time.Time, log string) error

func (f WriterFunc) Write(timestamp *time.Time, log string) error {
	return f(timestamp, log)
}
