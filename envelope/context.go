package envelope

import (
	"maps"
	"os"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Context is the snapshot of process-wide tags stamped onto every envelope.
// The zero value carries no tags.
type Context struct {
	tags map[string]string
}

// NewContext derives the cloud role tags from the resource describing the
// instrumented process. res may be nil.
func NewContext(res *resource.Resource, extVersion string) Context {
	tags := map[string]string{
		TagInternalSdk: sdkVersion(extVersion),
	}

	var name, namespace, instance string
	if res != nil {
		if v, ok := res.Set().Value(semconv.ServiceNameKey); ok {
			name = v.AsString()
		}
		if v, ok := res.Set().Value(semconv.ServiceNamespaceKey); ok {
			namespace = v.AsString()
		}
		if v, ok := res.Set().Value(semconv.ServiceInstanceIDKey); ok {
			instance = v.AsString()
		}
	}

	switch {
	case name != "" && namespace != "":
		tags[TagCloudRole] = namespace + "." + name
	case name != "":
		tags[TagCloudRole] = name
	}

	if instance == "" {
		instance, _ = os.Hostname()
	}
	if instance != "" {
		tags[TagCloudRoleInstance] = instance
	}

	return Context{tags: tags}
}

// NewContextFromTags is used when the caller already holds the tag set.
func NewContextFromTags(tags map[string]string) Context {
	return Context{tags: maps.Clone(tags)}
}

// Tags returns a copy the caller is free to modify.
func (c Context) Tags() map[string]string {
	tags := make(map[string]string, len(c.tags)+3)
	maps.Copy(tags, c.tags)
	return tags
}

func sdkVersion(ext string) string {
	goVersion := strings.TrimPrefix(runtime.Version(), "go")
	return "go" + goVersion + ":ot" + otel.Version() + ":ext" + ext
}
