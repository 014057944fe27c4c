package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/DocMesh/docmesh-mvp/engine/docs"
	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

type capturingPublisher struct {
	msgs []*nats.Msg
	err  error
}

func (p *capturingPublisher) PublishMsg(msg *nats.Msg) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type stubUploader struct {
	err   error
	calls int
}

func (u *stubUploader) Upload(_ context.Context, filename string, _ []byte) (docs.UploadResult, error) {
	u.calls++
	if u.err != nil {
		return docs.UploadResult{}, u.err
	}
	return docs.UploadResult{ID: 1, Filename: filename, ChunkCount: 2}, nil
}

func jobMsg(t *testing.T, job Job, retries string) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	msg := nats.NewMsg(Subject)
	msg.Data = data
	if retries != "" {
		msg.Header.Set(retryHeader, retries)
	}
	return msg
}

func newConsumer(pub publisher, up Uploader) *consumer {
	return &consumer{pub: pub, uploader: up, logger: slog.Default()}
}

func TestPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", domain.ErrDuplicateDocument, true},
		{"empty filename", domain.ErrEmptyFilename, true},
		{"invalid filename", domain.ErrInvalidFilename, true},
		{"extraction", domain.NewExtractionError("x.pdf", errors.New("corrupt")), true},
		{"wrapped duplicate", errors.Join(errors.New("outer"), domain.ErrDuplicateDocument), true},
		{"index down", domain.NewIndexError("add", errors.New("connection refused")), false},
		{"plain", errors.New("timeout"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := permanent(tc.err); got != tc.want {
				t.Errorf("permanent(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestHandle_SuccessPublishesNothing(t *testing.T) {
	pub := &capturingPublisher{}
	up := &stubUploader{}
	c := newConsumer(pub, up)

	c.handle(jobMsg(t, Job{Filename: "report.pdf", Data: []byte("pdf")}, ""))

	if up.calls != 1 {
		t.Fatalf("upload calls = %d, want 1", up.calls)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("unexpected publishes: %d", len(pub.msgs))
	}
}

func TestHandle_TransientFailureRepublishesWithRetryHeader(t *testing.T) {
	pub := &capturingPublisher{}
	up := &stubUploader{err: domain.NewIndexError("add", errors.New("connection refused"))}
	c := newConsumer(pub, up)

	msg := jobMsg(t, Job{Filename: "report.pdf", Data: []byte("pdf")}, "")
	msg.Header.Set("Traceparent", "00-abc-def-01")
	c.handle(msg)

	if len(pub.msgs) != 1 {
		t.Fatalf("publishes = %d, want 1", len(pub.msgs))
	}
	out := pub.msgs[0]
	if out.Subject != Subject {
		t.Fatalf("republished to %q, want %q", out.Subject, Subject)
	}
	if got := out.Header.Get(retryHeader); got != "1" {
		t.Fatalf("retry header = %q, want 1", got)
	}
	if got := out.Header.Get("Traceparent"); got != "00-abc-def-01" {
		t.Fatalf("trace header dropped, got %q", got)
	}
	if string(out.Data) != string(msg.Data) {
		t.Fatal("payload changed on republish")
	}
}

func TestHandle_ExhaustedRetriesGoToDLQ(t *testing.T) {
	pub := &capturingPublisher{}
	uploadErr := domain.NewIndexError("add", errors.New("still down"))
	c := newConsumer(pub, &stubUploader{err: uploadErr})

	c.handle(jobMsg(t, Job{Filename: "report.pdf", Data: []byte("pdf")}, "2"))

	if len(pub.msgs) != 1 {
		t.Fatalf("publishes = %d, want 1", len(pub.msgs))
	}
	out := pub.msgs[0]
	if out.Subject != DLQSubject {
		t.Fatalf("published to %q, want %q", out.Subject, DLQSubject)
	}
	var dlq dlqMessage
	if err := json.Unmarshal(out.Data, &dlq); err != nil {
		t.Fatalf("unmarshal DLQ message: %v", err)
	}
	if dlq.Job.Filename != "report.pdf" || dlq.Retries != MaxRetries {
		t.Fatalf("unexpected DLQ message: %+v", dlq)
	}
	if dlq.Error == "" {
		t.Fatal("DLQ message missing error")
	}
}

func TestHandle_PermanentFailureSkipsRetries(t *testing.T) {
	pub := &capturingPublisher{}
	c := newConsumer(pub, &stubUploader{err: domain.ErrDuplicateDocument})

	c.handle(jobMsg(t, Job{Filename: "report.pdf", Data: []byte("pdf")}, ""))

	if len(pub.msgs) != 1 {
		t.Fatalf("publishes = %d, want 1", len(pub.msgs))
	}
	if pub.msgs[0].Subject != DLQSubject {
		t.Fatalf("duplicate went to %q, want %q", pub.msgs[0].Subject, DLQSubject)
	}
	var dlq dlqMessage
	if err := json.Unmarshal(pub.msgs[0].Data, &dlq); err != nil {
		t.Fatal(err)
	}
	if dlq.Retries != 1 {
		t.Fatalf("retries = %d, want 1 (no requeue for permanent failures)", dlq.Retries)
	}
}

func TestHandle_MalformedJobIsDropped(t *testing.T) {
	pub := &capturingPublisher{}
	up := &stubUploader{}
	c := newConsumer(pub, up)

	msg := nats.NewMsg(Subject)
	msg.Data = []byte("{not json")
	c.handle(msg)

	if up.calls != 0 {
		t.Fatalf("upload calls = %d, want 0", up.calls)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("unexpected publishes: %d", len(pub.msgs))
	}
}
