package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/axonops/axonops-schema-registry/internal/api/types"
	"github.com/axonops/axonops-schema-registry/internal/compatibility"
	"github.com/axonops/axonops-schema-registry/internal/registry"
	"github.com/axonops/axonops-schema-registry/internal/schema"
	"github.com/axonops/axonops-schema-registry/internal/storage"
)

// writeTimeout bounds how long a mutating request waits for the reader loop
// to replay its own write before the handler gives up and reports an error.
const writeTimeout = 10 * time.Second

// Config carries build/deployment metadata surfaced on health and status
// endpoints.
type Config struct {
	ClusterID string
	Version   string
	Commit    string
	BuildTime string
}

// LogReplayHandler serves the Confluent-compatible REST surface from the
// log-replay core (registry.State) instead of a CRUD storage backend. Reads
// come straight from State; writes go through a registry.Writer, which
// produces to the schemas topic and blocks until the reader loop has
// replayed the record back into State.
//
// This handler only covers the operations the replicated state machine
// models: schema/subject/version CRUD, config, and compatibility checking.
// Mode, multi-context routing, and schema import have no equivalent in
// State and are out of scope.
type LogReplayHandler struct {
	state        *registry.State
	writer       *registry.Writer
	checker      *compatibility.Checker
	schemaParser *schema.Registry
	clusterID    string
	version      string
	commit       string
	buildTime    string
}

// NewLogReplayHandler creates a log-replay-backed Handler.
func NewLogReplayHandler(state *registry.State, writer *registry.Writer, checker *compatibility.Checker, schemaParser *schema.Registry, cfg Config) *LogReplayHandler {
	return &LogReplayHandler{
		state:        state,
		writer:       writer,
		checker:      checker,
		schemaParser: schemaParser,
		clusterID:    cfg.ClusterID,
		version:      cfg.Version,
		commit:       cfg.Commit,
		buildTime:    cfg.BuildTime,
	}
}

// HealthCheck handles GET /
func (h *LogReplayHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{})
}

// LivenessCheck handles GET /health/live
func (h *LogReplayHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// ReadinessCheck handles GET /health/ready. Ready means the reader loop has
// finished its initial catch-up of the schemas topic (state.Ready).
func (h *LogReplayHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.state.Ready() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
}

// StartupCheck handles GET /health/startup
func (h *LogReplayHandler) StartupCheck(w http.ResponseWriter, r *http.Request) {
	h.ReadinessCheck(w, r)
}

// GetSchemaTypes handles GET /schemas/types
func (h *LogReplayHandler) GetSchemaTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.schemaParser.Types())
}

// GetSchemaByID handles GET /schemas/ids/{id}
func (h *LogReplayHandler) GetSchemaByID(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidSchema, "Invalid schema ID")
		return
	}

	typed, ok := h.state.GetSchemaByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSchemaNotFound, "Schema not found")
		return
	}

	writeJSON(w, http.StatusOK, types.SchemaByIDResponse{
		Schema:     typed.Source,
		SchemaType: schemaTypeForResponse(typed.Kind),
		References: typed.References,
	})
}

// GetRawSchemaByID handles GET /schemas/ids/{id}/schema
func (h *LogReplayHandler) GetRawSchemaByID(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidSchema, "Invalid schema ID")
		return
	}
	typed, ok := h.state.GetSchemaByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSchemaNotFound, "Schema not found")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.schemaregistry.v1+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(typed.Source)) // #nosec G705 -- schema content from state, not user input
}

// ListSubjects handles GET /subjects
func (h *LogReplayHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	deleted := r.URL.Query().Get("deleted") == "true"
	subjectPrefix := r.URL.Query().Get("subjectPrefix")

	names := h.state.ListSubjects()
	subjects := make([]string, 0, len(names))
	for _, name := range names {
		subj, ok := h.state.GetSubject(name)
		if !ok {
			continue
		}
		if !deleted {
			if _, hasLive := subj.LatestLive(); !hasLive {
				continue
			}
		}
		if subjectPrefix != "" && !strings.HasPrefix(name, subjectPrefix) {
			continue
		}
		subjects = append(subjects, name)
	}
	writeJSON(w, http.StatusOK, subjects)
}

// GetVersions handles GET /subjects/{subject}/versions
func (h *LogReplayHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	includeDeleted := r.URL.Query().Get("deleted") == "true"

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}

	versions := make([]int, 0, len(subj.Schemas))
	for _, v := range subj.Versions() {
		entry := subj.Schemas[v]
		if entry.Deleted && !includeDeleted {
			continue
		}
		versions = append(versions, v)
	}
	writeJSON(w, http.StatusOK, versions)
}

// GetVersion handles GET /subjects/{subject}/versions/{version}
func (h *LogReplayHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	versionStr := chi.URLParam(r, "version")
	includeDeleted := r.URL.Query().Get("deleted") == "true"

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}

	entry, err := resolveVersionEntry(subj, versionStr, includeDeleted)
	if err != nil {
		writeVersionResolutionError(w, err, versionStr)
		return
	}

	writeJSON(w, http.StatusOK, types.SubjectVersionResponse{
		Subject:    subject,
		ID:         entry.ID,
		Version:    entry.Version,
		SchemaType: schemaTypeForResponse(entry.Schema.Kind),
		Schema:     entry.Schema.Source,
		References: entry.Schema.References,
	})
}

// GetRawSchemaByVersion handles GET /subjects/{subject}/versions/{version}/schema
func (h *LogReplayHandler) GetRawSchemaByVersion(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	versionStr := chi.URLParam(r, "version")

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}
	entry, err := resolveVersionEntry(subj, versionStr, false)
	if err != nil {
		writeVersionResolutionError(w, err, versionStr)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.schemaregistry.v1+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(entry.Schema.Source)) // #nosec G705 -- schema content from state, not user input
}

var errVersionNotFound = fmt.Errorf("version not found")

// resolveVersionEntry finds a subject's version entry, handling the
// "latest" / "-1" sentinel against live (non-deleted) versions only.
func resolveVersionEntry(subj *registry.Subject, versionStr string, includeDeleted bool) (*registry.SubjectVersionEntry, error) {
	version, err := parseVersion(versionStr)
	if err != nil {
		return nil, err
	}
	if version == -1 {
		entry, ok := subj.LatestLive()
		if !ok {
			return nil, errVersionNotFound
		}
		return entry, nil
	}
	entry, ok := subj.Schemas[version]
	if !ok {
		return nil, errVersionNotFound
	}
	if entry.Deleted && !includeDeleted {
		return nil, errVersionNotFound
	}
	return entry, nil
}

func writeVersionResolutionError(w http.ResponseWriter, err error, versionStr string) {
	if err == errVersionNotFound {
		writeError(w, http.StatusNotFound, types.ErrorCodeVersionNotFound, "Version not found")
		return
	}
	writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidVersion,
		fmt.Sprintf("The specified version '%s' is not a valid version id. Allowed values are between [1, 2^31-1] and the string \"latest\"", versionStr))
}

// RegisterSchema handles POST /subjects/{subject}/versions
func (h *LogReplayHandler) RegisterSchema(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	var req types.RegisterSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidSchema, "Invalid request body")
		return
	}
	if req.Schema == "" {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, "Empty schema")
		return
	}

	kind := storage.SchemaType(strings.ToUpper(req.SchemaType))
	if kind == "" {
		kind = storage.SchemaTypeAvro
	}

	typed, err := schema.Parse(h.schemaParser, kind, req.Schema, req.References)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, err.Error())
		return
	}

	if subj, ok := h.state.GetSubject(subject); ok {
		if existing, ok := subjectVersionOf(subj, typed); ok {
			writeJSON(w, http.StatusOK, types.RegisterSchemaResponse{ID: existing.ID})
			return
		}

		mode := h.state.EffectiveCompatibility(subject)
		if mode != compatibility.ModeNone {
			result := h.checker.Check(mode, kind, typed.SchemaWithRefs(), liveSchemasWithRefs(subj))
			if !result.IsCompatible {
				writeError(w, http.StatusConflict, types.ErrorCodeIncompatibleSchema, strings.Join(result.Messages, "; "))
				return
			}
		}
	}

	id := h.state.GetSchemaID(typed)
	nextVersion := 1
	if subj, ok := h.state.GetSubject(subject); ok {
		versions := subj.Versions()
		nextVersion = versions[len(versions)-1] + 1
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if _, err := h.writer.ProposeSchema(ctx, subject, nextVersion, id, string(kind), req.Schema, false); err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.RegisterSchemaResponse{ID: id})
}

// subjectVersionOf returns a subject's existing live version whose schema
// equals typed, if any (dedup: resubmitting the latest registered schema
// returns its existing id rather than minting a new version).
func subjectVersionOf(subj *registry.Subject, typed schema.TypedSchema) (*registry.SubjectVersionEntry, bool) {
	for _, v := range subj.Versions() {
		entry := subj.Schemas[v]
		if !entry.Deleted && entry.Schema.Equals(typed) {
			return entry, true
		}
	}
	return nil, false
}

func liveSchemasWithRefs(subj *registry.Subject) []compatibility.SchemaWithRefs {
	out := make([]compatibility.SchemaWithRefs, 0, len(subj.Schemas))
	for _, v := range subj.Versions() {
		entry := subj.Schemas[v]
		if entry.Deleted {
			continue
		}
		out = append(out, entry.Schema.SchemaWithRefs())
	}
	return out
}

// LookupSchema handles POST /subjects/{subject}
func (h *LogReplayHandler) LookupSchema(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	var req types.LookupSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidSchema, "Invalid request body")
		return
	}
	if req.Schema == "" {
		writeError(w, http.StatusNotFound, types.ErrorCodeSchemaNotFound, "Schema not found")
		return
	}

	kind := storage.SchemaType(strings.ToUpper(req.SchemaType))
	if kind == "" {
		kind = storage.SchemaTypeAvro
	}

	typed, err := schema.Parse(h.schemaParser, kind, req.Schema, req.References)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, err.Error())
		return
	}

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, fmt.Sprintf("Subject '%s' not found.", subject))
		return
	}
	entry, ok := subjectVersionOf(subj, typed)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSchemaNotFound, "Schema not found")
		return
	}

	writeJSON(w, http.StatusOK, types.LookupSchemaResponse{
		Subject:    subject,
		ID:         entry.ID,
		Version:    entry.Version,
		SchemaType: schemaTypeForResponse(entry.Schema.Kind),
		Schema:     entry.Schema.Source,
		References: entry.Schema.References,
	})
}

// DeleteSubject handles DELETE /subjects/{subject}
func (h *LogReplayHandler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}
	versions := subj.Versions()
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}
	maxVersion := versions[len(versions)-1]

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if _, err := h.writer.ProposeDeleteSubject(ctx, subject, maxVersion); err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

// DeleteVersion handles DELETE /subjects/{subject}/versions/{version}
func (h *LogReplayHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	versionStr := chi.URLParam(r, "version")

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}
	entry, err := resolveVersionEntry(subj, versionStr, false)
	if err != nil {
		writeVersionResolutionError(w, err, versionStr)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if _, err := h.writer.ProposeSchema(ctx, subject, entry.Version, entry.ID, string(entry.Schema.Kind), entry.Schema.Source, true); err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry.Version)
}

// GetConfig handles GET /config and GET /config/{subject}
func (h *LogReplayHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	defaultToGlobal := r.URL.Query().Get("defaultToGlobal") == "true"

	if subject != "" {
		subj, ok := h.state.GetSubject(subject)
		if (!ok || subj.Compatibility == nil) && !defaultToGlobal {
			writeError(w, http.StatusNotFound, types.ErrorCodeSubjectCompatNotFound,
				fmt.Sprintf("Subject '%s' does not have subject-level compatibility configured", subject))
			return
		}
	}

	writeJSON(w, http.StatusOK, types.ConfigResponse{
		CompatibilityLevel: string(h.state.EffectiveCompatibility(subject)),
	})
}

// SetConfig handles PUT /config and PUT /config/{subject}
func (h *LogReplayHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	var req types.ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidCompatibilityLevel, "Invalid request body")
		return
	}
	if req.Compatibility == "" {
		writeJSON(w, http.StatusOK, types.ConfigRequest{Compatibility: string(h.state.EffectiveCompatibility(subject))})
		return
	}

	level := strings.ToUpper(req.Compatibility)
	if _, ok := compatibility.ParseMode(level); !ok {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidCompatibilityLevel,
			fmt.Sprintf("Invalid compatibility level: %s", req.Compatibility))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if _, err := h.writer.ProposeConfig(ctx, subject, level); err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.ConfigRequest{Compatibility: level})
}

// DeleteConfig handles DELETE /config/{subject}
func (h *LogReplayHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if subject == "" {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidSchema, "Subject required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if _, err := h.writer.ProposeConfig(ctx, subject, ""); err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.ConfigResponse{
		CompatibilityLevel: string(h.state.GlobalCompatibility()),
	})
}

// DeleteGlobalConfig handles DELETE /config
func (h *LogReplayHandler) DeleteGlobalConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if _, err := h.writer.ProposeConfig(ctx, "", ""); err != nil {
		writeError(w, http.StatusInternalServerError, types.ErrorCodeInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.ConfigResponse{
		CompatibilityLevel: string(h.state.GlobalCompatibility()),
	})
}

// CheckCompatibility handles POST /compatibility/subjects/{subject}/versions/{version}
// and POST /compatibility/subjects/{subject}/versions
func (h *LogReplayHandler) CheckCompatibility(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	versionStr := chi.URLParam(r, "version")

	var req types.CompatibilityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrorCodeInvalidSchema, "Invalid request body")
		return
	}
	if req.Schema == "" {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, "Empty schema")
		return
	}

	kind := storage.SchemaType(strings.ToUpper(req.SchemaType))
	if kind == "" {
		kind = storage.SchemaTypeAvro
	}
	typed, err := schema.Parse(h.schemaParser, kind, req.Schema, req.References)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, types.ErrorCodeInvalidSchema, err.Error())
		return
	}

	subj, ok := h.state.GetSubject(subject)
	if !ok {
		writeError(w, http.StatusNotFound, types.ErrorCodeSubjectNotFound, "Subject not found")
		return
	}

	var existing []compatibility.SchemaWithRefs
	if versionStr != "" {
		entry, err := resolveVersionEntry(subj, versionStr, false)
		if err != nil {
			writeVersionResolutionError(w, err, versionStr)
			return
		}
		existing = []compatibility.SchemaWithRefs{entry.Schema.SchemaWithRefs()}
	} else {
		existing = liveSchemasWithRefs(subj)
	}

	mode := h.state.EffectiveCompatibility(subject)
	result := h.checker.Check(mode, kind, typed.SchemaWithRefs(), existing)

	verbose := r.URL.Query().Get("verbose") == "true"
	resp := types.CompatibilityCheckResponse{IsCompatible: result.IsCompatible}
	if verbose {
		resp.Messages = result.Messages
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetContexts handles GET /contexts. State models a single flat namespace,
// so only the default context exists.
func (h *LogReplayHandler) GetContexts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{"."})
}

// GetClusterID handles GET /v1/metadata/id
func (h *LogReplayHandler) GetClusterID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ServerClusterIDResponse{ID: h.clusterID})
}

// GetServerVersion handles GET /v1/metadata/version
func (h *LogReplayHandler) GetServerVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ServerVersionResponse{
		Version:   h.version,
		Commit:    h.commit,
		BuildTime: h.buildTime,
	})
}
