package avatarmail

import (
	"log/slog"
	"testing"
	"time"
)

func TestOptionDefaults(t *testing.T) {
	o := newOptions()

	if o.maxSubjectLength != DefaultMaxSubjectLength {
		t.Errorf("expected default subject length %d, got %d", DefaultMaxSubjectLength, o.maxSubjectLength)
	}
	if o.maxContentSize != DefaultMaxContentSize {
		t.Errorf("expected default content size %d, got %d", DefaultMaxContentSize, o.maxContentSize)
	}
	if o.maxConcurrentMutations != DefaultMaxConcurrentMutations {
		t.Errorf("expected default concurrency %d, got %d", DefaultMaxConcurrentMutations, o.maxConcurrentMutations)
	}
	if o.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("expected default shutdown timeout %v, got %v", DefaultShutdownTimeout, o.shutdownTimeout)
	}
	if o.logger == nil {
		t.Error("expected default logger")
	}
	if o.onEventPublishFailure == nil {
		t.Error("expected default event failure handler")
	}
	if o.eventErrorsFatal {
		t.Error("event errors should not be fatal by default")
	}
	if o.tracingEnabled || o.metricsEnabled {
		t.Error("telemetry should be disabled by default")
	}
}

func TestOptionValidation(t *testing.T) {
	t.Run("rejects non-positive limits", func(t *testing.T) {
		o := newOptions(
			WithMaxSubjectLength(0),
			WithMaxContentSize(-1),
			WithMaxConcurrentMutations(0),
		)
		if o.maxSubjectLength != DefaultMaxSubjectLength {
			t.Error("zero subject length should keep default")
		}
		if o.maxContentSize != DefaultMaxContentSize {
			t.Error("negative content size should keep default")
		}
		if o.maxConcurrentMutations != DefaultMaxConcurrentMutations {
			t.Error("zero concurrency should keep default")
		}
	})

	t.Run("rejects too-short shutdown timeout", func(t *testing.T) {
		o := newOptions(WithShutdownTimeout(time.Millisecond))
		if o.shutdownTimeout != DefaultShutdownTimeout {
			t.Error("sub-minimum shutdown timeout should keep default")
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		o := newOptions(WithLogger(nil))
		if o.logger == nil {
			t.Error("nil logger should keep default")
		}
	})

	t.Run("applies valid values", func(t *testing.T) {
		logger := slog.Default().With("test", true)
		o := newOptions(
			WithMaxSubjectLength(64),
			WithMaxContentSize(1024),
			WithMaxConcurrentMutations(4),
			WithShutdownTimeout(5*time.Second),
			WithLogger(logger),
			WithServiceName("mail-test"),
			WithEventErrorsFatal(true),
			WithOTel(true),
		)
		if o.maxSubjectLength != 64 || o.maxContentSize != 1024 || o.maxConcurrentMutations != 4 {
			t.Error("limits not applied")
		}
		if o.shutdownTimeout != 5*time.Second {
			t.Error("shutdown timeout not applied")
		}
		if o.serviceName != "mail-test" {
			t.Error("service name not applied")
		}
		if !o.eventErrorsFatal {
			t.Error("eventErrorsFatal not applied")
		}
		if !o.tracingEnabled || !o.metricsEnabled {
			t.Error("WithOTel should enable both tracing and metrics")
		}
	})
}

func TestSafeEventPublishFailure(t *testing.T) {
	t.Run("panicking handler is contained", func(t *testing.T) {
		o := newOptions(WithEventPublishFailureHandler(func(string, error) {
			panic("handler gone wrong")
		}))

		defer func() {
			if r := recover(); r != nil {
				t.Errorf("panic escaped the handler: %v", r)
			}
		}()
		o.safeEventPublishFailure("MessageCreated", nil)
	})

	t.Run("handler receives the event name", func(t *testing.T) {
		var got string
		o := newOptions(WithEventPublishFailureHandler(func(name string, _ error) {
			got = name
		}))
		o.safeEventPublishFailure("MessageRemoved", nil)
		if got != "MessageRemoved" {
			t.Errorf("expected MessageRemoved, got %q", got)
		}
	})
}
