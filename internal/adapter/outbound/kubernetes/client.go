package kubernetes

import (
	"cmp"
	"fmt"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jonny/hookaudit/pkg/version"
)

const (
	defaultQPS   float32 = 5
	defaultBurst         = 10
)

// ClientConfig selects how the event sink reaches the API server. Zero
// QPS, Burst and UserAgent fall back to the package defaults.
type ClientConfig struct {
	InCluster  bool
	Kubeconfig string
	QPS        float32
	Burst      int
	UserAgent  string
}

// RESTConfig resolves cfg into a rest.Config with the sink's client-side
// rate limit and user agent applied.
func RESTConfig(cfg ClientConfig) (*rest.Config, error) {
	var rc *rest.Config
	var err error
	if cfg.InCluster {
		rc, err = rest.InClusterConfig()
	} else {
		rc, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("building k8s config: %w", err)
	}

	rc.QPS = cmp.Or(cfg.QPS, defaultQPS)
	rc.Burst = cmp.Or(cfg.Burst, defaultBurst)
	rc.UserAgent = cmp.Or(cfg.UserAgent, "hookaudit/"+version.Version)
	return rc, nil
}

// NewClientset builds the clientset the event sink writes through.
func NewClientset(cfg ClientConfig) (k8s.Interface, error) {
	rc, err := RESTConfig(cfg)
	if err != nil {
		return nil, err
	}
	cs, err := k8s.NewForConfig(rc)
	if err != nil {
		return nil, fmt.Errorf("creating k8s clientset: %w", err)
	}
	return cs, nil
}
