// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetconf/srr/lib/bulk"
	"github.com/fleetconf/srr/lib/collision"
	"github.com/fleetconf/srr/lib/convert"
	"github.com/fleetconf/srr/lib/document"
	"github.com/fleetconf/srr/lib/registry"
	"github.com/fleetconf/srr/lib/store"
)

// Catalog supplies the feature table for each request.
type Catalog interface {
	Current() *registry.Table
}

// BulkCopier moves opaque feature files to and from payloads.
type BulkCopier interface {
	ReadAsPortable(ctx context.Context, path string) (*bulk.Payload, error)
	WriteFromPortable(ctx context.Context, path string, payload *bulk.Payload) error
}

// StateToggle reads and sets the time-sync service state.
type StateToggle interface {
	QueryState(ctx context.Context) (bool, error)
	ApplyState(ctx context.Context, enable bool) error
}

// Config configures a Processor. Store, Features and Bulk are
// required.
type Config struct {
	Store    store.ConfigStore
	Features Catalog
	Bulk     BulkCopier

	// TimeSync is consulted for features marked TimeSync. Nil leaves
	// the service state out of artifacts and ignores it on restore.
	TimeSync StateToggle

	// Codec defaults to collision.Default().
	Codec *collision.Codec

	// Versions defaults to DefaultVersions().
	Versions Versions

	// Policy defaults to FamilyPolicy.
	Policy VersionPolicy

	// Language is the default message language (BCP 47).
	Language string

	// Timeout bounds each opaque file copy and service toggle. Zero
	// means no bound beyond the request context.
	Timeout time.Duration

	// Registerer receives the processor's metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Processor runs Save, Restore and Reset requests. Requests are
// serialized: each holds the store from its reload to its last commit.
type Processor struct {
	store    store.ConfigStore
	features Catalog
	bulk     BulkCopier
	timeSync StateToggle
	codec    *collision.Codec
	versions Versions
	policy   VersionPolicy
	language string
	timeout  time.Duration
	metrics  *metrics
	logger   *slog.Logger

	mu sync.Mutex
}

// New returns a Processor.
func New(config Config) (*Processor, error) {
	if config.Store == nil {
		return nil, errors.New("srr: Store is required")
	}
	if config.Features == nil {
		return nil, errors.New("srr: Features is required")
	}
	if config.Bulk == nil {
		return nil, errors.New("srr: Bulk is required")
	}
	if config.Codec == nil {
		config.Codec = collision.Default()
	}
	if config.Versions == (Versions{}) {
		config.Versions = DefaultVersions()
	}
	if config.Policy == nil {
		config.Policy = FamilyPolicy{}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	m, err := newMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}
	return &Processor{
		store:    config.Store,
		features: config.Features,
		bulk:     config.Bulk,
		timeSync: config.TimeSync,
		codec:    config.Codec,
		versions: config.Versions,
		policy:   config.Policy,
		language: config.Language,
		timeout:  config.Timeout,
		metrics:  m,
		logger:   config.Logger,
	}, nil
}

// Features lists the names of the features currently managed.
func (p *Processor) Features() []string {
	return p.features.Current().Names()
}

// MarkSent records that the response to an operation reached the
// caller.
func (p *Processor) MarkSent(operation string) {
	p.metrics.states.WithLabelValues(operation, Sent.String()).Inc()
}

func (p *Processor) localizer(language string) *Localizer {
	if language == "" {
		language = p.language
	}
	return NewLocalizer(language)
}

// Save reads every requested feature into an artifact. An empty
// request is rejected with a nil response and a *ValidationError,
// without touching the store. Otherwise every feature gets a
// status and the error is nil.
func (p *Processor) Save(ctx context.Context, req SaveRequest) (*SaveResponse, error) {
	r := p.receive("save")
	localizer := p.localizer(req.Language)
	if len(req.Features) == 0 {
		r.advance(Rejected)
		return nil, &ValidationError{Operation: "save", Message: localizer.Sprintf(msgEmptySave)}
	}
	r.advance(Validated)
	response := &SaveResponse{Features: make(map[string]SavedFeature)}

	p.mu.Lock()
	defer p.mu.Unlock()

	table := p.features.Current()
	reloadErr := p.store.Reload(ctx)
	if reloadErr != nil {
		r.logger.Error("store reload failed", "error", reloadErr)
	}

	r.advance(PerFeatureProcessing)
	var statuses []FeatureStatus
	for _, name := range uniqueSorted(req.Features) {
		artifact, err := p.saveFeature(ctx, table, name, reloadErr)
		saved := SavedFeature{Status: FeatureStatus{Status: StatusSuccess}}
		if err != nil {
			r.logger.Error("feature save failed", "feature", name, "error", err)
			saved.Status = FeatureStatus{Status: StatusFailed, Message: failureMessage(localizer, "save", name, err)}
		} else {
			saved.Artifact = artifact
		}
		response.Features[name] = saved
		statuses = append(statuses, saved.Status)
		p.metrics.observeFeature("save", name, saved.Status.Status)
	}
	response.Outcome = Aggregate(statuses)
	r.aggregated(response.Outcome)
	return response, nil
}

func (p *Processor) saveFeature(ctx context.Context, table *registry.Table, name string, reloadErr error) (*Artifact, error) {
	feature, err := table.Resolve(name)
	if err != nil {
		return nil, &ResolutionError{Feature: name, Err: err}
	}
	switch feature.Class {
	case registry.Opaque:
		return p.saveOpaque(ctx, feature)
	default:
		if reloadErr != nil {
			return nil, &PersistError{Feature: name, Err: reloadErr}
		}
		return p.saveTree(feature)
	}
}

func (p *Processor) saveTree(feature registry.Feature) (*Artifact, error) {
	doc, err := convert.ToDocument(p.store, feature.RootPattern(), feature.RootSegment())
	if err != nil {
		if convert.IsConflict(err) {
			return nil, &ConversionError{Feature: feature.Name, Kind: StructuralConflict, Err: err}
		}
		return nil, &PersistError{Feature: feature.Name, Err: err}
	}
	text, err := document.Marshal(doc)
	if err != nil {
		return nil, &ConversionError{Feature: feature.Name, Kind: MalformedDocument, Err: err}
	}
	return &Artifact{Version: p.versions.Tree, Data: p.codec.Encode(string(text))}, nil
}

func (p *Processor) saveOpaque(ctx context.Context, feature registry.Feature) (*Artifact, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	payload, err := p.bulk.ReadAsPortable(ctx, feature.FilePath)
	if err != nil {
		return nil, &PersistError{Feature: feature.Name, Err: err}
	}
	if feature.TimeSync && p.timeSync != nil {
		running, err := p.timeSync.QueryState(ctx)
		if err != nil {
			return nil, &ServiceStateError{Feature: feature.Name, Err: err}
		}
		payload.Enable = &running
	}
	data, err := payload.Marshal()
	if err != nil {
		return nil, &ConversionError{Feature: feature.Name, Kind: MalformedPayload, Err: err}
	}
	return &Artifact{Version: p.versions.Opaque, Data: data}, nil
}

// Restore applies every supplied artifact to its feature. A request
// without artifacts is rejected with a nil response and a
// *ValidationError. Otherwise every feature gets a status and the error
// is nil.
func (p *Processor) Restore(ctx context.Context, req RestoreRequest) (*RestoreResponse, error) {
	r := p.receive("restore")
	localizer := p.localizer(req.Language)
	if len(req.Features) == 0 {
		r.advance(Rejected)
		return nil, &ValidationError{Operation: "restore", Message: localizer.Sprintf(msgEmptyRestore)}
	}
	r.advance(Validated)
	response := &RestoreResponse{Features: make(map[string]FeatureStatus)}

	p.mu.Lock()
	defer p.mu.Unlock()

	table := p.features.Current()
	reloadErr := p.store.Reload(ctx)
	if reloadErr != nil {
		r.logger.Error("store reload failed", "error", reloadErr)
	}

	r.advance(PerFeatureProcessing)
	names := make([]string, 0, len(req.Features))
	for name := range req.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	var statuses []FeatureStatus
	for _, name := range names {
		status := FeatureStatus{Status: StatusSuccess}
		if err := p.restoreFeature(ctx, table, name, req.Features[name], reloadErr); err != nil {
			r.logger.Error("feature restore failed", "feature", name, "error", err)
			status = FeatureStatus{Status: StatusFailed, Message: failureMessage(localizer, "restore", name, err)}
		}
		response.Features[name] = status
		statuses = append(statuses, status)
		p.metrics.observeFeature("restore", name, status.Status)
	}
	response.Outcome = Aggregate(statuses)
	r.aggregated(response.Outcome)
	return response, nil
}

func (p *Processor) restoreFeature(ctx context.Context, table *registry.Table, name string, artifact Artifact, reloadErr error) error {
	feature, err := table.Resolve(name)
	if err != nil {
		return &ResolutionError{Feature: name, Err: err}
	}
	running := p.versions.For(feature.Class)
	if !p.policy.Accepts(feature.Class, artifact.Version, running) {
		return &VersionMismatchError{
			Feature:  name,
			Class:    feature.Class,
			Version:  artifact.Version,
			Expected: p.policy.Expected(feature.Class, running),
		}
	}
	switch feature.Class {
	case registry.Opaque:
		return p.restoreOpaque(ctx, feature, artifact)
	default:
		if reloadErr != nil {
			return &PersistError{Feature: name, Err: reloadErr}
		}
		return p.restoreTree(ctx, feature, artifact)
	}
}

func (p *Processor) restoreTree(ctx context.Context, feature registry.Feature, artifact Artifact) error {
	doc, err := document.Unmarshal([]byte(p.codec.Decode(artifact.Data)))
	if err != nil {
		return &ConversionError{Feature: feature.Name, Kind: MalformedDocument, Err: err}
	}
	if err := convert.ApplyDocument(ctx, p.store, doc, feature.StoreRoot); err != nil {
		if convert.IsConflict(err) {
			return &ConversionError{Feature: feature.Name, Kind: StructuralConflict, Err: err}
		}
		// Drop whatever the failed commit left pending so it is not
		// flushed with the next feature.
		if reloadErr := p.store.Reload(ctx); reloadErr != nil {
			p.logger.Error("store reload after failed restore", "feature", feature.Name, "error", reloadErr)
		}
		return &PersistError{Feature: feature.Name, Err: err}
	}
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		if pretty, err := document.Pretty(doc); err == nil {
			p.logger.Debug("feature restored", "feature", feature.Name, "root", feature.StoreRoot, "document", pretty)
		}
	}
	return nil
}

func (p *Processor) restoreOpaque(ctx context.Context, feature registry.Feature, artifact Artifact) error {
	payload, err := bulk.ParsePayload(artifact.Data)
	if err != nil {
		return &ConversionError{Feature: feature.Name, Kind: MalformedPayload, Err: err}
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	if err := p.bulk.WriteFromPortable(ctx, feature.FilePath, payload); err != nil {
		return &PersistError{Feature: feature.Name, Err: err}
	}
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		if content, err := os.ReadFile(feature.FilePath); err == nil {
			p.logger.Debug("feature restored", "feature", feature.Name, "path", feature.FilePath, "content", string(content))
		}
	}
	// The file stays written when the service state cannot be applied.
	if feature.TimeSync && payload.Enable != nil && p.timeSync != nil {
		if err := p.timeSync.ApplyState(ctx, *payload.Enable); err != nil {
			return &ServiceStateError{Feature: feature.Name, Enable: *payload.Enable, Err: err}
		}
	}
	return nil
}

// Reset is not implemented. It always returns a *NotImplementedError
// and never touches the store or any file.
func (p *Processor) Reset(ctx context.Context, req ResetRequest) (*ResetResponse, error) {
	r := p.receive("reset")
	message := p.localizer(req.Language).Sprintf(msgResetUnsupported)
	r.advance(Rejected)
	return &ResetResponse{Error: message}, &NotImplementedError{Operation: "reset", Message: message}
}

func (p *Processor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// failureMessage renders the caller-facing message for a feature
// error. Internal error text stays in the logs.
func failureMessage(localizer *Localizer, operation, feature string, err error) string {
	var (
		resolution *ResolutionError
		version    *VersionMismatchError
		conversion *ConversionError
		service    *ServiceStateError
	)
	switch {
	case errors.As(err, &resolution):
		return localizer.Sprintf(msgUnknownFeature, feature)
	case errors.As(err, &version):
		return localizer.Sprintf(msgVersion, version.Expected, version.Version)
	case errors.Is(err, fs.ErrPermission):
		if operation == "save" {
			return localizer.Sprintf(msgSaveAccess, feature)
		}
		return localizer.Sprintf(msgRestoreAccess, feature)
	case errors.As(err, &conversion):
		if operation == "save" {
			return localizer.Sprintf(msgSaveStructure, feature)
		}
		return localizer.Sprintf(msgRestoreStructure, feature)
	case errors.As(err, &service):
		if operation == "save" {
			return localizer.Sprintf(msgServiceQuery, feature)
		}
		return localizer.Sprintf(msgServiceState, feature)
	}
	if operation == "save" {
		return localizer.Sprintf(msgSaveFailed, feature)
	}
	return localizer.Sprintf(msgRestoreFailed, feature)
}

func uniqueSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}
	sort.Strings(unique)
	return unique
}
