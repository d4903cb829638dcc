// Package handlers provides the HTTP endpoints of the dynamed API: recommendations,
// interaction checks, prescription lines and read access to the reference catalog.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/giygas/dynamed-api/interaction"
	"github.com/giygas/dynamed-api/interfaces"
	"github.com/giygas/dynamed-api/logging"
	"github.com/giygas/dynamed-api/metrics"
	"github.com/giygas/dynamed-api/prescription"
	"github.com/giygas/dynamed-api/recommendation"
)

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

const (
	// PageSize is the number of molecules per page of /v1/molecules
	PageSize = 20

	// StrategyBestPerClass keeps one molecule per resolved medical class
	StrategyBestPerClass = "best-per-class"

	defaultMaxBody  = 1 << 20
	defaultMaxNames = 200
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
	maxBody       int64
	maxNames      int
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies. maxBody bounds
// request bodies and maxNames the drug names of an interaction check.
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker, maxBody int64, maxNames int) *HTTPHandlerImpl {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	if maxNames <= 0 {
		maxNames = defaultMaxNames
	}
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		healthChecker: healthChecker,
		maxBody:       maxBody,
		maxNames:      maxNames,
	}
}

// RecommendationResponse is the body of /v1/recommendations
type RecommendationResponse struct {
	CatalogVersion uint64                    `json:"catalogVersion"`
	Strategy       string                    `json:"strategy,omitempty"`
	Count          int                       `json:"count"`
	Data           []entities.ScoredMolecule `json:"data"`
}

// ExplainResponse is the body of /v1/recommendations/explain
type ExplainResponse struct {
	CatalogVersion uint64                      `json:"catalogVersion"`
	Count          int                         `json:"count"`
	Data           []recommendation.Assessment `json:"data"`
}

// InteractionCheckRequest asks whether candidate may join the selected drugs
type InteractionCheckRequest struct {
	Candidate string   `json:"candidate"`
	Selected  []string `json:"selected"`
}

// InteractionCheckResponse is the body of /v1/interactions/check
type InteractionCheckResponse struct {
	Candidate string                 `json:"candidate"`
	Blocked   bool                   `json:"blocked"`
	Conflicts []interaction.Conflict `json:"conflicts"`
}

// PrescriptionLineRequest adds a recommended molecule next to the molecules already prescribed
type PrescriptionLineRequest struct {
	Context             entities.ConsultationContext `json:"context"`
	MoleculeID          string                       `json:"moleculeId"`
	SelectedMoleculeIDs []string                     `json:"selectedMoleculeIds"`
	CommercialNameID    string                       `json:"commercialNameId"`
	Frequency           string                       `json:"frequency"`
	Duration            string                       `json:"duration"`
}

// InteractionConflictResponse is the 409 body of a blocked prescription line
type InteractionConflictResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Code      int                    `json:"code"`
	Conflicts []interaction.Conflict `json:"conflicts"`
}

// MoleculeResponse is the body of /v1/molecules/{id}
type MoleculeResponse struct {
	Molecule           entities.Molecule         `json:"molecule"`
	CommercialNames    []entities.CommercialName `json:"commercialNames"`
	Indications        []string                  `json:"indications"`
	MedicalClasses     []string                  `json:"medicalClasses"`
	Precautions        []string                  `json:"precautions"`
	Allergies          []string                  `json:"allergies"`
	Antecedents        []string                  `json:"antecedents"`
	CurrentMedications []string                  `json:"currentMedications"`
}

// decodeConsultation reads and validates a consultation context body
func (h *HTTPHandlerImpl) decodeConsultation(w http.ResponseWriter, r *http.Request) (entities.ConsultationContext, bool) {
	var ctx entities.ConsultationContext
	if !decodeJSON(w, r, h.maxBody, &ctx) {
		return ctx, false
	}
	if err := h.validator.ValidateConsultation(ctx); err != nil {
		logging.Warn("Invalid consultation context", "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return ctx, false
	}
	return ctx, true
}

// ServeRecommendations ranks the admissible molecules for a consultation context
func (h *HTTPHandlerImpl) ServeRecommendations(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy != "" && strategy != StrategyBestPerClass {
		RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown strategy %q, supported: %s", strategy, StrategyBestPerClass))
		return
	}

	ctx, ok := h.decodeConsultation(w, r)
	if !ok {
		return
	}

	snap := h.dataStore.Snapshot()
	ranked := recommendation.Recommend(ctx, snap)
	observeAssessments(recommendation.Assess(ctx, snap))

	if strategy == StrategyBestPerClass {
		ranked = recommendation.BestPerClass(ranked, ctx, snap)
	}

	RespondWithJSON(w, http.StatusOK, RecommendationResponse{
		CatalogVersion: snap.Version(),
		Strategy:       strategy,
		Count:          len(ranked),
		Data:           ranked,
	})
}

// ServeRecommendationExplain reports the outcome of every class-matching molecule
func (h *HTTPHandlerImpl) ServeRecommendationExplain(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.decodeConsultation(w, r)
	if !ok {
		return
	}

	snap := h.dataStore.Snapshot()
	assessments := recommendation.Assess(ctx, snap)
	observeAssessments(assessments)

	RespondWithJSON(w, http.StatusOK, ExplainResponse{
		CatalogVersion: snap.Version(),
		Count:          len(assessments),
		Data:           assessments,
	})
}

func observeAssessments(assessments []recommendation.Assessment) {
	var kept, excluded, dropped int
	for _, a := range assessments {
		switch {
		case a.Excluded != recommendation.NotExcluded:
			excluded++
		case a.Kept:
			kept++
		default:
			dropped++
		}
	}
	metrics.ObserveRecommendation(kept, excluded, dropped)
}

// CheckInteractions screens a candidate drug against the selected drugs, in both directions
func (h *HTTPHandlerImpl) CheckInteractions(w http.ResponseWriter, r *http.Request) {
	var req InteractionCheckRequest
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	if err := h.validator.ValidateInput(req.Candidate); err != nil {
		RespondWithError(w, http.StatusBadRequest, "candidate: "+err.Error())
		return
	}
	if len(req.Selected) > h.maxNames {
		RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("selected has %d entries, maximum %d", len(req.Selected), h.maxNames))
		return
	}
	for i, name := range req.Selected {
		if err := h.validator.ValidateInput(name); err != nil {
			RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("selected[%d]: %s", i, err))
			return
		}
	}

	table := h.dataStore.Snapshot().Interactions()
	blocked := interaction.Check(req.Candidate, req.Selected, table)
	metrics.ObserveInteractionCheck(blocked)

	conflicts := []interaction.Conflict{}
	if blocked {
		conflicts = interaction.Conflicts(req.Candidate, req.Selected, table)
	}

	RespondWithJSON(w, http.StatusOK, InteractionCheckResponse{
		Candidate: req.Candidate,
		Blocked:   blocked,
		Conflicts: conflicts,
	})
}

// AddPrescriptionLine builds the line of a recommended molecule after screening it
// against the molecules already prescribed
func (h *HTTPHandlerImpl) AddPrescriptionLine(w http.ResponseWriter, r *http.Request) {
	var req PrescriptionLineRequest
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}
	if err := h.validatePrescriptionRequest(req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := h.dataStore.Snapshot()
	if _, found := snap.Molecule(req.MoleculeID); !found {
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("molecule %s not found", req.MoleculeID))
		return
	}

	candidate, found := findRanked(recommendation.Recommend(req.Context, snap), req.MoleculeID)
	if !found {
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("molecule %s is not recommended for this consultation", req.MoleculeID))
		return
	}

	draft := prescription.NewDraft()
	for _, id := range req.SelectedMoleculeIDs {
		m, found := snap.Molecule(id)
		if !found {
			RespondWithError(w, http.StatusNotFound, fmt.Sprintf("selected molecule %s not found", id))
			return
		}
		// lines already on the prescription were screened when they were added
		if _, err := draft.Add(entities.ScoredMolecule{Molecule: m}, nil); err != nil {
			RespondWithError(w, http.StatusBadRequest, "selectedMoleculeIds: "+err.Error())
			return
		}
	}

	line, err := draft.Add(candidate, snap.Interactions())
	metrics.ObserveInteractionCheck(errors.Is(err, prescription.ErrInteraction))
	if err != nil {
		h.respondDraftError(w, err)
		return
	}

	if req.CommercialNameID != "" {
		cn, found := snap.CommercialName(req.CommercialNameID)
		if !found {
			RespondWithError(w, http.StatusNotFound, fmt.Sprintf("commercial name %s not found", req.CommercialNameID))
			return
		}
		if line, err = draft.SelectCommercialName(line.ID, cn); err != nil {
			h.respondDraftError(w, err)
			return
		}
	}

	if req.Frequency != "" || req.Duration != "" {
		if line, err = draft.SetPosology(line.ID, req.Frequency, req.Duration); err != nil {
			h.respondDraftError(w, err)
			return
		}
	}

	RespondWithJSON(w, http.StatusCreated, line)
}

func (h *HTTPHandlerImpl) validatePrescriptionRequest(req PrescriptionLineRequest) error {
	if err := h.validator.ValidateConsultation(req.Context); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := h.validator.ValidateID(req.MoleculeID); err != nil {
		return fmt.Errorf("moleculeId: %w", err)
	}
	if err := h.validator.ValidateIDs("selectedMoleculeIds", req.SelectedMoleculeIDs); err != nil {
		return err
	}
	if req.CommercialNameID != "" {
		if err := h.validator.ValidateID(req.CommercialNameID); err != nil {
			return fmt.Errorf("commercialNameId: %w", err)
		}
	}
	if len(req.Frequency) > 100 || len(req.Duration) > 100 {
		return errors.New("frequency and duration are limited to 100 bytes")
	}
	return nil
}

func (h *HTTPHandlerImpl) respondDraftError(w http.ResponseWriter, err error) {
	var interactionErr *prescription.InteractionError
	switch {
	case errors.As(err, &interactionErr):
		RespondWithJSON(w, http.StatusConflict, InteractionConflictResponse{
			Error:     http.StatusText(http.StatusConflict),
			Message:   err.Error(),
			Code:      http.StatusConflict,
			Conflicts: interactionErr.Conflicts,
		})
	case errors.Is(err, prescription.ErrDuplicateMolecule):
		RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, prescription.ErrCommercialNameMismatch):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Error("Failed to build prescription line", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "failed to build prescription line")
	}
}

func findRanked(ranked []entities.ScoredMolecule, id string) (entities.ScoredMolecule, bool) {
	for _, sm := range ranked {
		if sm.ID == id {
			return sm, true
		}
	}
	return entities.ScoredMolecule{}, false
}

// ServeMolecules returns one page of the molecules, in catalog order
func (h *HTTPHandlerImpl) ServeMolecules(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			logging.Warn("Unusual user input", "page", raw)
			RespondWithError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	snap := h.dataStore.Snapshot()
	total := snap.Counts().Molecules
	maxPage := (total + PageSize - 1) / PageSize
	if page > max(maxPage, 1) {
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("page %d not found, last page is %d", page, maxPage))
		return
	}

	respondCached(w, r, snap.CreatedAt(), map[string]any{
		"catalogVersion": snap.Version(),
		"data":           snap.MoleculesPage((page-1)*PageSize, PageSize),
		"page":           page,
		"pageSize":       PageSize,
		"maxPage":        maxPage,
		"totalItems":     total,
	})
}

// ServeMoleculeByID returns a molecule with its commercial names and resolved labels
func (h *HTTPHandlerImpl) ServeMoleculeByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidateID(id); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := h.dataStore.Snapshot()
	m, found := snap.Molecule(id)
	if !found {
		RespondWithError(w, http.StatusNotFound, fmt.Sprintf("molecule %s not found", id))
		return
	}

	respondCached(w, r, snap.CreatedAt(), MoleculeResponse{
		Molecule:        m,
		CommercialNames: snap.CommercialNames(m.ID),
		Indications:     resolveNames(m.IndicationIDs, snap.IndicationName),
		MedicalClasses:  resolveNames(m.MedicalClassIDs, snap.MedicalClassName),
		Precautions:     resolveNames(m.PrecautionIDs, snap.PrecautionName),

		Allergies:          resolveNames(m.AllergyIDs, snap.AllergyName),
		Antecedents:        resolveNames(m.AntecedentIDs, snap.AntecedentName),
		CurrentMedications: resolveNames(m.CurrentMedicationIDs, snap.CurrentMedicationName),
	})
}

func resolveNames(ids []string, lookup func(string) (string, bool)) []string {
	names := []string{}
	for _, id := range ids {
		if name, found := lookup(id); found {
			names = append(names, name)
		}
	}
	return names
}

// ServeDiagnostics lists the diagnostics with their medical classes
func (h *HTTPHandlerImpl) ServeDiagnostics(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	diagnostics := snap.Diagnostics()
	respondCached(w, r, snap.CreatedAt(), map[string]any{
		"catalogVersion": snap.Version(),
		"count":          len(diagnostics),
		"data":           diagnostics,
	})
}

// ServeInteractions lists the interaction records, optionally those naming ?drug= on either side
func (h *HTTPHandlerImpl) ServeInteractions(w http.ResponseWriter, r *http.Request) {
	drug := strings.TrimSpace(r.URL.Query().Get("drug"))
	if drug != "" {
		if err := h.validator.ValidateInput(drug); err != nil {
			RespondWithError(w, http.StatusBadRequest, "drug: "+err.Error())
			return
		}
	}

	snap := h.dataStore.Snapshot()
	records := snap.Interactions()
	if drug != "" {
		records = involving(records, drug)
	}

	respondCached(w, r, snap.CreatedAt(), map[string]any{
		"catalogVersion": snap.Version(),
		"count":          len(records),
		"data":           records,
	})
}

func involving(records []entities.Interaction, drug string) []entities.Interaction {
	out := []entities.Interaction{}
	for _, in := range records {
		if in.FirstDrug == drug {
			out = append(out, in)
			continue
		}
		for _, partner := range in.SecondDrugs {
			if partner == drug {
				out = append(out, in)
				break
			}
		}
	}
	return out
}

// lookupList renders one lookup list of the published catalog
func lookupList[T any](w http.ResponseWriter, r *http.Request, snap *catalog.Snapshot, items []T) {
	respondCached(w, r, snap.CreatedAt(), map[string]any{
		"catalogVersion": snap.Version(),
		"count":          len(items),
		"data":           items,
	})
}

// ServeMedicalClasses lists the medical classes
func (h *HTTPHandlerImpl) ServeMedicalClasses(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	lookupList(w, r, snap, snap.MedicalClasses())
}

// ServeIndications lists the indications a consultation can select
func (h *HTTPHandlerImpl) ServeIndications(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	lookupList(w, r, snap, snap.Indications())
}

// ServeAllergies lists the allergies a consultation can declare
func (h *HTTPHandlerImpl) ServeAllergies(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	lookupList(w, r, snap, snap.Allergies())
}

// ServeAntecedents lists the medical antecedents
func (h *HTTPHandlerImpl) ServeAntecedents(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	lookupList(w, r, snap, snap.Antecedents())
}

// ServeCurrentMedications lists the current medications
func (h *HTTPHandlerImpl) ServeCurrentMedications(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	lookupList(w, r, snap, snap.CurrentMedications())
}

// ServePrecautions lists the precautions
func (h *HTTPHandlerImpl) ServePrecautions(w http.ResponseWriter, r *http.Request) {
	snap := h.dataStore.Snapshot()
	lookupList(w, r, snap, snap.Precautions())
}

// ServeReport returns the data-quality report of the published catalog
func (h *HTTPHandlerImpl) ServeReport(w http.ResponseWriter, r *http.Request) {
	report := h.dataStore.GetReport()
	if report == nil {
		RespondWithError(w, http.StatusNotFound, "no catalog has been imported yet")
		return
	}
	respondCached(w, r, h.dataStore.GetLastUpdated(), report)
}

// HealthResponse keeps the health fields in a stable order
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// HealthCheck reports the catalog health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.healthChecker.HealthCheck()
	RespondWithJSON(w, httpStatus, HealthResponse{Status: status, Data: data})
}
