// Package ingest provides asynchronous document ingestion over NATS with
// retry and dead letter support.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/DocMesh/docmesh-mvp/engine/docs"
	"github.com/DocMesh/docmesh-mvp/engine/domain"
	"github.com/DocMesh/docmesh-mvp/pkg/natsutil"
)

const (
	// Subject is the NATS subject for upload jobs.
	Subject = "docmesh.ingest"
	// DLQSubject receives jobs that exhausted their retries.
	DLQSubject = "docmesh.ingest.dlq"
	// MaxRetries before a job moves to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Job is one document upload request. Data carries the raw PDF bytes.
type Job struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// Uploader runs a stored upload end to end.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (docs.UploadResult, error)
}

// dlqMessage is published when a job gives up.
type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// Enqueue publishes an upload job for asynchronous processing.
func Enqueue(ctx context.Context, nc *nats.Conn, job Job) error {
	return natsutil.Publish(ctx, nc, Subject, job)
}

// publisher is the slice of nats.Conn the consumer needs to re-publish
// retries and DLQ messages.
type publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// consumer processes one upload job per message.
type consumer struct {
	pub      publisher
	uploader Uploader
	logger   *slog.Logger
}

// StartConsumer subscribes to the ingest subject and runs each job through
// the uploader. Transient failures are re-published with an incremented
// retry header; permanent ones (duplicate, bad filename, unparseable file)
// and exhausted jobs go to the DLQ.
func StartConsumer(nc *nats.Conn, uploader Uploader, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &consumer{pub: nc, uploader: uploader, logger: logger}
	return nc.Subscribe(Subject, c.handle)
}

func (c *consumer) handle(msg *nats.Msg) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		c.logger.Error("ingest: unmarshal failed", "error", err)
		return
	}

	ctx := natsutil.Extract(msg)

	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get(retryHeader); v != "" {
			fmt.Sscanf(v, "%d", &retries)
		}
	}

	result, err := c.uploader.Upload(ctx, job.Filename, job.Data)
	if err == nil {
		c.logger.Info("ingest: success", "doc_id", result.ID, "filename", result.Filename, "chunks", result.ChunkCount)
		return
	}

	retries++
	c.logger.Error("ingest: upload failed", "filename", job.Filename, "retry", retries, "error", err)

	if permanent(err) || retries >= MaxRetries {
		dlqMsg, merr := natsutil.NewMsg(ctx, DLQSubject, dlqMessage{Job: job, Error: err.Error(), Retries: retries})
		if merr != nil {
			c.logger.Error("ingest: DLQ marshal failed", "error", merr)
			return
		}
		if perr := c.pub.PublishMsg(dlqMsg); perr != nil {
			c.logger.Error("ingest: DLQ publish failed", "error", perr)
		}
		return
	}

	// Carry the original headers forward so trace context survives retries.
	retryMsg := nats.NewMsg(Subject)
	retryMsg.Data = msg.Data
	for k, vals := range msg.Header {
		retryMsg.Header[k] = append([]string(nil), vals...)
	}
	retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
	if perr := c.pub.PublishMsg(retryMsg); perr != nil {
		c.logger.Error("ingest: retry publish failed", "error", perr)
	}
}

// permanent reports whether retrying the job can never succeed.
func permanent(err error) bool {
	var exErr *domain.ExtractionError
	return errors.Is(err, domain.ErrDuplicateDocument) ||
		errors.Is(err, domain.ErrEmptyFilename) ||
		errors.Is(err, domain.ErrInvalidFilename) ||
		errors.As(err, &exErr)
}
