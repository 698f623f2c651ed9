package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/hanzoai/node/internal/svcerr"
)

// KubernetesExecutor materialises a single-Pod Job per invocation (spec
// §4.8 Kubernetes): ConfigMap-mounted payload, optional Secret, resource
// requests/limits, and a non-root security context with all capabilities
// dropped unless added.
type KubernetesExecutor struct {
	client    kubernetes.Interface
	namespace string
	limits    ResourceLimits
}

// NewKubernetesExecutor constructs an executor over client in namespace.
func NewKubernetesExecutor(client kubernetes.Interface, namespace string, limits ResourceLimits) *KubernetesExecutor {
	if namespace == "" {
		namespace = "default"
	}
	if limits.Timeout == 0 {
		limits = DefaultResourceLimits(RuntimeKubernetes)
	}
	return &KubernetesExecutor{client: client, namespace: namespace, limits: limits}
}

func (e *KubernetesExecutor) Runtime() RuntimeKind { return RuntimeKubernetes }

func (e *KubernetesExecutor) Execute(ctx context.Context, req ExecuteRequest) ExecutionResult {
	start := time.Now()
	image, _ := req.Config["image"].(string)
	if image == "" {
		return e.fail(req, start, svcerr.ExecutionFailure("kubernetes tool missing image", nil))
	}

	name := fmt.Sprintf("node-job-%s", req.ExecutionID)
	payload, _ := json.Marshal(req.Parameters)

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: e.namespace},
		Data:       map[string]string{"parameters.json": string(payload)},
	}
	if _, err := e.client.CoreV1().ConfigMaps(e.namespace).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("configmap create failed", err))
	}
	defer e.client.CoreV1().ConfigMaps(e.namespace).Delete(context.Background(), name, metav1.DeleteOptions{})

	volumes := []corev1.Volume{
		{Name: "payload", VolumeSource: corev1.VolumeSource{
			ConfigMap: &corev1.ConfigMapVolumeSource{LocalObjectReference: corev1.LocalObjectReference{Name: name}},
		}},
	}
	mounts := []corev1.VolumeMount{
		{Name: "payload", MountPath: "/var/run/node", ReadOnly: true},
	}

	secretName := name + "-secret"
	if secretData := stringMap(req.Config["secret_data"]); len(secretData) > 0 {
		data := make(map[string][]byte, len(secretData))
		for k, v := range secretData {
			data[k] = []byte(v)
		}
		secret := &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: secretName, Namespace: e.namespace},
			Type:       corev1.SecretTypeOpaque,
			Data:       data,
		}
		if _, err := e.client.CoreV1().Secrets(e.namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
			return e.fail(req, start, svcerr.ExecutionFailure("secret create failed", err))
		}
		defer e.client.CoreV1().Secrets(e.namespace).Delete(context.Background(), secretName, metav1.DeleteOptions{})
		volumes = append(volumes, corev1.Volume{Name: "secret", VolumeSource: corev1.VolumeSource{
			Secret: &corev1.SecretVolumeSource{SecretName: secretName},
		}})
		mounts = append(mounts, corev1.VolumeMount{Name: "secret", MountPath: "/var/run/node-secret", ReadOnly: true})
	}

	affinity, err := parseAffinity(req.Config["affinity_json"])
	if err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("affinity_json invalid", err))
	}

	var capAdd []corev1.Capability
	for _, c := range stringSlice(req.Config["capabilities"]) {
		capAdd = append(capAdd, corev1.Capability(c))
	}

	backoff := e.limits.BackoffLimit
	deadline := int64(e.limits.Timeout.Seconds())
	falseVal := false
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: e.namespace},
		Spec: batchv1.JobSpec{
			BackoffLimit:          &backoff,
			ActiveDeadlineSeconds: &deadline,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					SecurityContext: &corev1.PodSecurityContext{
						RunAsNonRoot: &[]bool{true}[0],
					},
					NodeSelector: stringMap(req.Config["node_selector"]),
					Tolerations:  parseTolerations(req.Config["tolerations"]),
					Affinity:     affinity,
					Containers: []corev1.Container{
						{
							Name:  "tool",
							Image: image,
							Env: []corev1.EnvVar{
								{Name: "NODE_EXECUTION_ID", Value: req.ExecutionID},
								{Name: "NODE_CONTEXT_ID", Value: req.ContextID},
							},
							VolumeMounts: mounts,
							Resources:    e.resourceRequirements(),
							SecurityContext: &corev1.SecurityContext{
								AllowPrivilegeEscalation: &falseVal,
								Capabilities:             &corev1.Capabilities{Drop: []corev1.Capability{"ALL"}, Add: capAdd},
							},
						},
					},
					Volumes: volumes,
				},
			},
		},
	}

	if _, err := e.client.BatchV1().Jobs(e.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return e.fail(req, start, svcerr.ExecutionFailure("job create failed", err))
	}

	result := e.await(ctx, req, start, name)

	// Cleanup defaults to "always" but a tool can opt into keeping the Job
	// (and its Pod, for kubectl logs) around after a failure for debugging,
	// by setting cleanup_on_failure: false in its config.
	cleanupOnFailure, explicit := req.Config["cleanup_on_failure"].(bool)
	if result.State == StateSucceeded || !explicit || cleanupOnFailure {
		e.cleanup(name)
	}

	return result
}

func (e *KubernetesExecutor) resourceRequirements() corev1.ResourceRequirements {
	req := corev1.ResourceList{}
	lim := corev1.ResourceList{}
	if e.limits.CPUCores > 0 {
		q := resource.MustParse(fmt.Sprintf("%gm", e.limits.CPUCores*1000))
		req[corev1.ResourceCPU] = q
		lim[corev1.ResourceCPU] = q
	}
	if e.limits.MemoryMiB > 0 {
		q := resource.MustParse(fmt.Sprintf("%dMi", e.limits.MemoryMiB))
		req[corev1.ResourceMemory] = q
		lim[corev1.ResourceMemory] = q
	}
	if e.limits.GPUCount > 0 && e.limits.GPUVendor != "" {
		q := resource.MustParse(fmt.Sprintf("%d", e.limits.GPUCount))
		name := corev1.ResourceName(e.limits.GPUVendor)
		req[name] = q
		lim[name] = q
	}
	return corev1.ResourceRequirements{Requests: req, Limits: lim}
}

func (e *KubernetesExecutor) await(ctx context.Context, req ExecuteRequest, start time.Time, name string) ExecutionResult {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ExecutionResult{State: StateTimedOut, Runtime: RuntimeKubernetes, ToolKey: req.Tool.ToolKey, Err: svcerr.Timeout(req.Tool.ToolKey), Duration: time.Since(start)}
		case <-ticker.C:
			job, err := e.client.BatchV1().Jobs(e.namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					continue
				}
				return e.fail(req, start, svcerr.ExecutionFailure("job get failed", err))
			}
			if job.Status.Succeeded > 0 {
				logs := e.podLogs(ctx, name)
				return ExecutionResult{State: StateSucceeded, Runtime: RuntimeKubernetes, ToolKey: req.Tool.ToolKey, Value: map[string]interface{}{"job": name, "logs": logs}, Duration: time.Since(start)}
			}
			if job.Status.Failed > 0 {
				logs := e.podLogs(ctx, name)
				return e.fail(req, start, svcerr.ExecutionFailure("job failed: "+logs, nil))
			}
		}
	}
}

// podLogs fetches the completed Job's single Pod's log output via
// CoreV1().Pods(...).GetLogs(), best-effort: log retrieval failures never
// fail an otherwise-successful job.
func (e *KubernetesExecutor) podLogs(ctx context.Context, jobName string) string {
	pods, err := e.client.CoreV1().Pods(e.namespace).List(ctx, metav1.ListOptions{LabelSelector: "job-name=" + jobName})
	if err != nil || len(pods.Items) == 0 {
		return ""
	}
	stream, err := e.client.CoreV1().Pods(e.namespace).GetLogs(pods.Items[0].Name, &corev1.PodLogOptions{Container: "tool"}).Stream(ctx)
	if err != nil {
		return ""
	}
	defer stream.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, stream)
	return buf.String()
}

func (e *KubernetesExecutor) cleanup(name string) {
	propagation := metav1.DeletePropagationBackground
	_ = e.client.BatchV1().Jobs(e.namespace).Delete(context.Background(), name, metav1.DeleteOptions{PropagationPolicy: &propagation})
}

func (e *KubernetesExecutor) fail(req ExecuteRequest, start time.Time, err error) ExecutionResult {
	return ExecutionResult{State: StateFailed, Runtime: RuntimeKubernetes, ToolKey: req.Tool.ToolKey, Err: err, Duration: time.Since(start)}
}

// stringMap narrows a config value of type map[string]interface{} (the
// shape produced by decoding tool config from JSON) to map[string]string,
// dropping non-string values.
func stringMap(v interface{}) map[string]string {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

// parseTolerations reads a config.tolerations list (each entry a
// map[string]interface{} with the corev1.Toleration field names) into
// scheduler tolerations for the Pod.
func parseTolerations(v interface{}) []corev1.Toleration {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]corev1.Toleration, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		t := corev1.Toleration{}
		if s, ok := m["key"].(string); ok {
			t.Key = s
		}
		if s, ok := m["operator"].(string); ok {
			t.Operator = corev1.TolerationOperator(s)
		}
		if s, ok := m["value"].(string); ok {
			t.Value = s
		}
		if s, ok := m["effect"].(string); ok {
			t.Effect = corev1.TaintEffect(s)
		}
		if f, ok := m["toleration_seconds"].(float64); ok {
			seconds := int64(f)
			t.TolerationSeconds = &seconds
		}
		out = append(out, t)
	}
	return out
}

// parseAffinity reads config.affinity_json, a JSON-encoded corev1.Affinity
// document, since scheduling affinity's node/pod-affinity terms are too
// deeply nested to thread through flat config keys like the other knobs.
func parseAffinity(v interface{}) (*corev1.Affinity, error) {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var affinity corev1.Affinity
	if err := json.Unmarshal([]byte(raw), &affinity); err != nil {
		return nil, err
	}
	return &affinity, nil
}
