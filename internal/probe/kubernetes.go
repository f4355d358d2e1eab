package probe

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"mcpdiscover/internal/config"
	"mcpdiscover/pkg/logging"

	"github.com/google/uuid"
)

const kubernetesSubsystem = "KubernetesProbe"

// resourceNameMaxLen keeps generated names within the DNS-1123 label limit.
const resourceNameMaxLen = 63

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// KubernetesProbe discovers tools from an image by provisioning an ephemeral
// Deployment and Service, waiting for the pod to become Ready, and speaking
// streamable HTTP to the service endpoint. Both objects are deleted on every
// exit path once created; a failed synchronous deletion is retried in the
// background.
type KubernetesProbe struct {
	client client.Client
	reaper *Reaper

	cfg       config.KubernetesConfig
	discovery config.DiscoveryConfig

	// httpDiscover is swappable in tests.
	httpDiscover httpDiscoverFunc
}

// NewKubernetesProbe creates a probe using the ambient kubeconfig or
// in-cluster credentials.
func NewKubernetesProbe(cfg config.Config) (*KubernetesProbe, error) {
	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
	}

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to build scheme: %w", err)
	}

	k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return newKubernetesProbeWithClient(k8sClient, cfg), nil
}

func newKubernetesProbeWithClient(c client.Client, cfg config.Config) *KubernetesProbe {
	return &KubernetesProbe{
		client:       c,
		reaper:       NewReaper(cfg.Discovery.CleanupRetries, cfg.Discovery.CleanupBaseDelay.D()),
		cfg:          cfg.Kubernetes,
		discovery:    cfg.Discovery,
		httpDiscover: discoverStreamableHTTP,
	}
}

// DiscoverFromImage provisions a Deployment and Service for the image, waits
// for the pod to become Ready, and lists tools over the service endpoint. All
// failures resolve to nil with a logged diagnostic.
func (p *KubernetesProbe) DiscoverFromImage(ctx context.Context, target ImageTarget) *DiscoveryResult {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = p.discovery.Timeout.D()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	port, err := FindFreePort(p.discovery.PortRangeStart, p.discovery.PortRangeEnd)
	if err != nil {
		logging.Warn(kubernetesSubsystem, "No port available for %s: %v", target.Image, err)
		return nil
	}

	name := resourceName(target.Image)
	deployment := p.buildDeployment(name, target, port)
	service := p.buildService(name, port)

	if err := p.client.Create(ctx, deployment); err != nil {
		if apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) {
			logging.Warn(kubernetesSubsystem, "Access denied creating deployment in namespace %s: %v", p.cfg.Namespace, err)
		} else {
			logging.Warn(kubernetesSubsystem, "Creating deployment %s failed: %v", name, err)
		}
		return nil
	}
	defer p.teardown(name)

	if err := p.client.Create(ctx, service); err != nil {
		logging.Warn(kubernetesSubsystem, "Creating service %s failed: %v", name, err)
		return nil
	}

	if !p.waitPodReady(ctx, name) {
		logging.Warn(kubernetesSubsystem, "Pod for %s never became Ready within %s", name, p.cfg.PodReadyTimeout.D())
		return nil
	}

	url := p.endpointURL(name, port)
	tools, info, err := p.httpDiscover(ctx, url)
	if err != nil {
		logging.Warn(kubernetesSubsystem, "Discovery against %s failed: %v", url, err)
		return nil
	}

	logging.Debug(kubernetesSubsystem, "Discovered %d tools from %s", len(tools), target.Image)
	return &DiscoveryResult{
		Tools:      tools,
		Method:     MethodKubernetesService,
		ServerInfo: info,
		Timestamp:  time.Now().UTC(),
	}
}

func (p *KubernetesProbe) buildDeployment(name string, target ImageTarget, port int) *appsv1.Deployment {
	labels := probeLabels(name)
	replicas := int32(1)

	env := []corev1.EnvVar{{Name: "MCP_PORT", Value: fmt.Sprintf("%d", port)}}
	for _, k := range sortedEnvKeys(target.Env) {
		env = append(env, corev1.EnvVar{Name: k, Value: target.Env[k]})
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.cfg.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "mcp-server",
							Image: target.Image,
							Args:  target.Args,
							Env:   env,
							Ports: []corev1.ContainerPort{
								{ContainerPort: int32(port)},
							},
						},
					},
				},
			},
		},
	}
}

func (p *KubernetesProbe) buildService(name string, port int) *corev1.Service {
	labels := probeLabels(name)

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.cfg.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: labels,
			Ports: []corev1.ServicePort{
				{
					Port:       int32(port),
					TargetPort: intstr.FromInt(port),
				},
			},
		},
	}
}

// waitPodReady polls the deployment's pods until one reports the Ready
// condition or the timeout expires.
func (p *KubernetesProbe) waitPodReady(ctx context.Context, name string) bool {
	deadline := time.Now().Add(p.cfg.PodReadyTimeout.D())
	for time.Now().Before(deadline) {
		var pods corev1.PodList
		err := p.client.List(ctx, &pods,
			client.InNamespace(p.cfg.Namespace),
			client.MatchingLabels{"app": name})
		if err == nil {
			for _, pod := range pods.Items {
				if podReady(&pod) {
					return true
				}
			}
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return false
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// endpointURL returns the streamable HTTP endpoint for the service. The
// in-cluster DNS name is used unless an endpoint override is configured.
func (p *KubernetesProbe) endpointURL(name string, port int) string {
	if p.cfg.Endpoint != "" {
		return fmt.Sprintf("%s:%d/mcp", strings.TrimSuffix(p.cfg.Endpoint, "/"), port)
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d/mcp", name, p.cfg.Namespace, port)
}

// teardown deletes the Service then the Deployment. Already-gone objects are
// fine; any other failure hands the object to the background reaper. It never
// fails the discovery call.
func (p *KubernetesProbe) teardown(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: p.cfg.Namespace},
	}
	p.deleteObject(ctx, "service "+name, service)

	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: p.cfg.Namespace},
	}
	p.deleteObject(ctx, "deployment "+name, deployment)
}

func (p *KubernetesProbe) deleteObject(ctx context.Context, resource string, obj client.Object) {
	err := p.client.Delete(ctx, obj)
	if err == nil || apierrors.IsNotFound(err) {
		return
	}

	logging.Warn(kubernetesSubsystem, "Synchronous deletion of %s failed: %v", resource, err)
	p.reaper.Schedule(resource, func(ctx context.Context) error {
		if err := p.client.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
			return err
		}
		return nil
	})
}

func probeLabels(name string) map[string]string {
	return map[string]string{
		"app":                          name,
		"app.kubernetes.io/managed-by": "mcpdiscover",
	}
}

// resourceName derives a valid DNS-1123 name from the image reference plus a
// random suffix so concurrent probes of the same image never collide.
func resourceName(image string) string {
	base := image
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.IndexAny(base, ":@"); idx >= 0 {
		base = base[:idx]
	}
	base = invalidNameChars.ReplaceAllString(strings.ToLower(base), "-")
	base = strings.Trim(base, "-")

	name := fmt.Sprintf("mcp-discover-%s-%s", base, uuid.NewString()[:8])
	if len(name) > resourceNameMaxLen {
		name = fmt.Sprintf("mcp-discover-%s", uuid.NewString()[:8])
	}
	return name
}
