package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// KubernetesManager implements the Manager interface using ConfigMaps.
// It is used when deployments run from inside a build cluster and the run
// history must be visible to other pods.
type KubernetesManager struct {
	client    kubernetes.Interface
	namespace string
}

// NewKubernetesManager creates a state manager using the in-cluster config.
func NewKubernetesManager(namespace string) (*KubernetesManager, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %v", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %v", err)
	}

	return &KubernetesManager{client: client, namespace: namespace}, nil
}

func runConfigMapName(id string) string {
	return fmt.Sprintf("mktdeploy-run-%s", id)
}

func lockConfigMapName(key string) string {
	return fmt.Sprintf("mktdeploy-lock-%s", key)
}

// GetRun retrieves a run by ID. A missing run returns (nil, nil).
func (k *KubernetesManager) GetRun(ctx context.Context, id string) (*Run, error) {
	cm, err := k.client.CoreV1().ConfigMaps(k.namespace).Get(ctx, runConfigMapName(id), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ConfigMap: %v", err)
	}

	var run Run
	if err := json.Unmarshal([]byte(cm.Data["run"]), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %v", err)
	}
	return &run, nil
}

func (k *KubernetesManager) runConfigMap(run *Run) (*corev1.ConfigMap, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %v", err)
	}
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name: runConfigMapName(run.ID),
			Labels: map[string]string{
				"app":       "mktdeploy",
				"connector": run.Connector,
			},
		},
		Data: map[string]string{
			"run": string(data),
		},
	}, nil
}

// CreateRun stores a new run record as a ConfigMap.
func (k *KubernetesManager) CreateRun(ctx context.Context, run *Run) error {
	cm, err := k.runConfigMap(run)
	if err != nil {
		return err
	}
	if _, err := k.client.CoreV1().ConfigMaps(k.namespace).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create ConfigMap: %v", err)
	}
	return nil
}

// UpdateRun replaces an existing run record.
func (k *KubernetesManager) UpdateRun(ctx context.Context, run *Run) error {
	cm, err := k.runConfigMap(run)
	if err != nil {
		return err
	}
	if _, err := k.client.CoreV1().ConfigMaps(k.namespace).Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update ConfigMap: %v", err)
	}
	return nil
}

// DeleteRun removes a run record.
func (k *KubernetesManager) DeleteRun(ctx context.Context, id string) error {
	err := k.client.CoreV1().ConfigMaps(k.namespace).Delete(ctx, runConfigMapName(id), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete ConfigMap: %v", err)
	}
	return nil
}

// ListRuns returns all runs, optionally filtered by connector.
func (k *KubernetesManager) ListRuns(ctx context.Context, connector string) ([]*Run, error) {
	selector := "app=mktdeploy"
	if connector != "" {
		selector = fmt.Sprintf("%s,connector=%s", selector, connector)
	}
	list, err := k.client.CoreV1().ConfigMaps(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ConfigMaps: %v", err)
	}

	var runs []*Run
	for _, cm := range list.Items {
		var run Run
		if err := json.Unmarshal([]byte(cm.Data["run"]), &run); err != nil {
			continue // Skip invalid records
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

// Lock acquires a named lock backed by a ConfigMap. An expired lock left
// behind by a crashed run is taken over.
func (k *KubernetesManager) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	name := lockConfigMapName(key)
	expires := time.Now().Add(ttl).Format(time.RFC3339)

	existing, err := k.client.CoreV1().ConfigMaps(k.namespace).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		if expiry, perr := time.Parse(time.RFC3339, existing.Annotations["expires"]); perr == nil && expiry.After(time.Now()) {
			return false, nil
		}
		if existing.Annotations == nil {
			existing.Annotations = map[string]string{}
		}
		existing.Annotations["expires"] = expires
		if _, err := k.client.CoreV1().ConfigMaps(k.namespace).Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
			return false, nil
		}
		return true, nil
	}
	if !apierrors.IsNotFound(err) {
		return false, fmt.Errorf("failed to get lock: %v", err)
	}

	lock := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Annotations: map[string]string{
				"expires": expires,
			},
			Labels: map[string]string{
				"app": "mktdeploy",
			},
		},
		Data: map[string]string{
			"locked_at": time.Now().Format(time.RFC3339),
		},
	}
	if _, err := k.client.CoreV1().ConfigMaps(k.namespace).Create(ctx, lock, metav1.CreateOptions{}); err != nil {
		return false, nil // Lost the race to another holder
	}
	return true, nil
}

// Unlock releases a named lock.
func (k *KubernetesManager) Unlock(ctx context.Context, key string) error {
	err := k.client.CoreV1().ConfigMaps(k.namespace).Delete(ctx, lockConfigMapName(key), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete lock: %v", err)
	}
	return nil
}
