// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gcloudlog

import (
	"context"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/compute/metadata"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"
)

// GlobalResource returns the "global" monitored resource, optionally labelled
// with the project.
func GlobalResource(projectID string) *mrpb.MonitoredResource {
	res := &mrpb.MonitoredResource{Type: "global"}
	if projectID != "" {
		res.Labels = map[string]string{"project_id": projectID}
	}
	return res
}

// metadataSource is the subset of the metadata server used for detection.
type metadataSource interface {
	OnGCE() bool
	Get(ctx context.Context, suffix string) (string, error)
}

type computeMetadata struct{}

func (computeMetadata) OnGCE() bool { return metadata.OnGCE() }

func (computeMetadata) Get(ctx context.Context, suffix string) (string, error) {
	return metadata.GetWithContext(ctx, suffix)
}

var metadataFetch metadataSource = computeMetadata{}

// cachedLookup memoises metadata lookups for a single detection pass.
type cachedLookup struct {
	src   metadataSource
	ctx   context.Context
	once  sync.Once
	onGCE bool
	cache map[string]string
}

func newCachedLookup(ctx context.Context, src metadataSource) *cachedLookup {
	return &cachedLookup{src: src, ctx: ctx, cache: make(map[string]string)}
}

func (l *cachedLookup) get(suffix string) string {
	l.once.Do(func() { l.onGCE = l.src.OnGCE() })
	if !l.onGCE {
		return ""
	}
	if v, ok := l.cache[suffix]; ok {
		return v
	}
	v, err := l.src.Get(l.ctx, suffix)
	if err != nil {
		v = ""
	}
	v = strings.TrimSpace(v)
	l.cache[suffix] = v
	return v
}

// DetectResource infers the monitored resource of the current runtime from
// well-known environment variables and the metadata server. It falls back to
// the global resource.
func DetectResource(ctx context.Context, projectID string) *mrpb.MonitoredResource {
	md := newCachedLookup(ctx, metadataFetch)
	if projectID == "" {
		projectID = md.get("project/project-id")
	}

	detectors := []func(string, *cachedLookup) *mrpb.MonitoredResource{
		detectCloudFunction,
		detectCloudRunService,
		detectCloudRunJob,
		detectAppEngine,
		detectKubernetes,
		detectComputeEngine,
	}
	for _, detect := range detectors {
		if res := detect(projectID, md); res != nil {
			return res
		}
	}
	return GlobalResource(projectID)
}

func detectCloudFunction(projectID string, md *cachedLookup) *mrpb.MonitoredResource {
	service := trimmedEnv("K_SERVICE")
	target := trimmedEnv("FUNCTION_TARGET")
	if service == "" || target == "" {
		return nil
	}
	return newResource("cloud_function", map[string]string{
		"project_id":    projectID,
		"function_name": service,
		"region":        firstNonEmpty(trimmedEnv("FUNCTION_REGION"), region(md)),
	})
}

func detectCloudRunService(projectID string, md *cachedLookup) *mrpb.MonitoredResource {
	service := trimmedEnv("K_SERVICE")
	revision := trimmedEnv("K_REVISION")
	if service == "" || revision == "" {
		return nil
	}
	return newResource("cloud_run_revision", map[string]string{
		"project_id":         projectID,
		"service_name":       service,
		"revision_name":      revision,
		"configuration_name": trimmedEnv("K_CONFIGURATION"),
		"location":           firstNonEmpty(trimmedEnv("CLOUD_RUN_REGION"), region(md)),
	})
}

func detectCloudRunJob(projectID string, md *cachedLookup) *mrpb.MonitoredResource {
	job := trimmedEnv("CLOUD_RUN_JOB")
	if job == "" || trimmedEnv("CLOUD_RUN_EXECUTION") == "" {
		return nil
	}
	return newResource("cloud_run_job", map[string]string{
		"project_id": projectID,
		"job_name":   job,
		"location":   firstNonEmpty(trimmedEnv("CLOUD_RUN_REGION"), region(md)),
	})
}

func detectAppEngine(projectID string, md *cachedLookup) *mrpb.MonitoredResource {
	service := trimmedEnv("GAE_SERVICE")
	version := trimmedEnv("GAE_VERSION")
	if service == "" && version == "" {
		return nil
	}
	return newResource("gae_app", map[string]string{
		"project_id": firstNonEmpty(projectID, strings.TrimPrefix(trimmedEnv("GAE_APPLICATION"), "_")),
		"module_id":  service,
		"version_id": version,
		"zone":       zone(md),
	})
}

func detectKubernetes(projectID string, md *cachedLookup) *mrpb.MonitoredResource {
	if trimmedEnv("KUBERNETES_SERVICE_HOST") == "" {
		return nil
	}
	return newResource("k8s_container", map[string]string{
		"project_id":     projectID,
		"location":       md.get("instance/attributes/cluster-location"),
		"cluster_name":   md.get("instance/attributes/cluster-name"),
		"namespace_name": firstNonEmpty(readNamespace(), trimmedEnv("NAMESPACE_NAME"), trimmedEnv("NAMESPACE")),
		"pod_name":       firstNonEmpty(trimmedEnv("POD_NAME"), trimmedEnv("HOSTNAME")),
		"container_name": trimmedEnv("CONTAINER_NAME"),
	})
}

func detectComputeEngine(projectID string, md *cachedLookup) *mrpb.MonitoredResource {
	instanceID := md.get("instance/id")
	if instanceID == "" {
		return nil
	}
	return newResource("gce_instance", map[string]string{
		"project_id":  projectID,
		"instance_id": instanceID,
		"zone":        zone(md),
	})
}

// newResource drops empty label values.
func newResource(typ string, labels map[string]string) *mrpb.MonitoredResource {
	for k, v := range labels {
		if v == "" {
			delete(labels, k)
		}
	}
	return &mrpb.MonitoredResource{Type: typ, Labels: labels}
}

// zone returns the short zone name, e.g. "us-central1-a".
func zone(md *cachedLookup) string {
	z := md.get("instance/zone")
	if idx := strings.LastIndex(z, "/"); idx >= 0 {
		z = z[idx+1:]
	}
	return z
}

// region returns the short region name, e.g. "us-central1".
func region(md *cachedLookup) string {
	r := md.get("instance/region")
	if idx := strings.LastIndex(r, "/"); idx >= 0 {
		r = r[idx+1:]
	}
	return r
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// readNamespace reads the Kubernetes namespace from the service account mount.
func readNamespace() string {
	data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
