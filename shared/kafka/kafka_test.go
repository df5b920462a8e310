package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

type message struct {
	ID string `json:"id"`
}

func TestTypedMessageHandler(t *testing.T) {
	var processed []string
	h := &TypedMessageHandler[message]{
		Validate: func(m *message) error {
			if m.ID == "" {
				return errors.New("missing id")
			}
			return nil
		},
		Process: func(_ context.Context, m *message) error {
			if m.ID == "retry" {
				return errors.New("transient")
			}
			processed = append(processed, m.ID)
			return nil
		},
		AlwaysMark: true,
	}

	tests := []struct {
		name     string
		value    string
		wantMark bool
		wantErr  bool
	}{
		{"valid", `{"id":"a"}`, true, false},
		{"garbage", `not json`, true, false},
		{"invalid", `{}`, true, false},
		{"process error", `{"id":"retry"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mark, err := h.HandleMessage(context.Background(), []byte("k"), []byte(tt.value))
			if mark != tt.wantMark || (err != nil) != tt.wantErr {
				t.Fatalf("mark=%v err=%v, want mark=%v err=%v", mark, err, tt.wantMark, tt.wantErr)
			}
		})
	}
	if len(processed) != 1 || processed[0] != "a" {
		t.Fatalf("processed = %v", processed)
	}

	h.AlwaysMark = false
	if mark, _ := h.HandleMessage(context.Background(), nil, []byte(`{}`)); mark {
		t.Fatal("invalid message must not be marked without AlwaysMark")
	}
}

func TestProducerPublishJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var m message
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		if m.ID != "run-1" {
			return errors.New("unexpected id " + m.ID)
		}
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFromSync(sp, nil)
	if err := p.PublishJSON("reel-completed", "run-1", message{ID: "run-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.PublishJSON("reel-completed", "run-2", message{ID: "run-2"}); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
