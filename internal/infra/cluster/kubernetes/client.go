package kubernetes

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// newClientset builds a clientset for the lease API. An explicit kubeconfig
// wins; otherwise the in-cluster service account is used, and outside a
// cluster the user's default kubeconfig.
func newClientset(kubeconfig string) (kubernetes.Interface, error) {
	restCfg, err := restConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	restCfg.UserAgent = "gsa-vigilante"
	return kubernetes.NewForConfig(restCfg)
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
		kubeconfig = clientcmd.RecommendedHomeFile
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig %s: %w", kubeconfig, err)
	}
	return cfg, nil
}
