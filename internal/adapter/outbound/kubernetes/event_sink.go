package kubernetes

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/jonny/hookaudit/internal/domain/model"
)

const (
	reportingComponent = "hookaudit"
	// Event messages are capped by the API server.
	maxMessageLen = 1024
)

// EventSinkConfig holds configuration for mirroring records as Events.
type EventSinkConfig struct {
	Namespace string
	// InvolvedObject is the object the Events are attached to, typically the
	// hookaudit Deployment.
	InvolvedKind       string
	InvolvedName       string
	InvolvedAPIVersion string
}

// EventSink implements outbound.Notifier by creating core/v1 Events.
type EventSink struct {
	clientset k8s.Interface
	cfg       EventSinkConfig
	now       func() time.Time
}

// NewEventSink creates an EventSink. Namespace defaults to "default".
func NewEventSink(clientset k8s.Interface, cfg EventSinkConfig) *EventSink {
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.InvolvedKind == "" {
		cfg.InvolvedKind = "Deployment"
		cfg.InvolvedAPIVersion = "apps/v1"
	}
	if cfg.InvolvedName == "" {
		cfg.InvolvedName = reportingComponent
	}
	return &EventSink{clientset: clientset, cfg: cfg, now: time.Now}
}

func (s *EventSink) Name() string { return "kubernetes" }

// NotifyRecord creates one Normal Event whose reason is the record kind.
func (s *EventSink) NotifyRecord(ctx context.Context, rec model.Record) error {
	ts := metav1.NewTime(s.now())
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s.%s", s.cfg.InvolvedName, strings.ToLower(rec.ID())),
			Namespace: s.cfg.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": reportingComponent,
			},
			Annotations: map[string]string{
				"hookaudit/record-id": rec.ID(),
			},
		},
		InvolvedObject: corev1.ObjectReference{
			Kind:       s.cfg.InvolvedKind,
			Name:       s.cfg.InvolvedName,
			Namespace:  s.cfg.Namespace,
			APIVersion: s.cfg.InvolvedAPIVersion,
		},
		Reason:              string(rec.Kind()),
		Message:             truncate(rec.Headline(), maxMessageLen),
		Type:                corev1.EventTypeNormal,
		Source:              corev1.EventSource{Component: reportingComponent},
		FirstTimestamp:      ts,
		LastTimestamp:       ts,
		Count:               1,
		ReportingController: reportingComponent,
	}

	if _, err := s.clientset.CoreV1().Events(s.cfg.Namespace).Create(ctx, event, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating event for record %s: %w", rec.ID(), err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
