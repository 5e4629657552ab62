package handlers

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appMol "github.com/turtacn/molregistry/internal/application/molecule"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

// Response details fixed by the public API.
const (
	DetailNoMolecules      = "no molecules found"
	DetailNoMatches        = "No matches found"
	DetailEmptyRegistry    = "No molecules available for search"
	DetailUploadSuccessful = "Molecules uploaded successfully"
)

const (
	defaultMaxUploadBytes = 32 << 20
	uploadField           = "file"
)

// AddRequest carries the fields of POST /add.
type AddRequest struct {
	Identifier string `json:"identifier" validate:"required,max=100"`
	SMILES     string `json:"smiles" validate:"required,max=100"`
}

// UpdateRequest carries the fields of PUT /molecules/{identifier}.
type UpdateRequest struct {
	Identifier string `json:"identifier" validate:"required,max=100"`
	SMILES     string `json:"smiles" validate:"required,max=100"`
}

// SearchRequest carries the fields of POST /molecules/search/.
type SearchRequest struct {
	Substructure string `json:"substructure" validate:"required,max=100,smiles"`
}

// UploadResponse reports a successful bulk upload.
type UploadResponse struct {
	Detail  string `json:"detail"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

// MoleculeHandler serves the registry routes.
type MoleculeHandler struct {
	svc            appMol.Service
	logger         logging.Logger
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewMoleculeHandler creates a MoleculeHandler.  A non-positive
// maxUploadBytes selects 32 MiB.
func NewMoleculeHandler(svc appMol.Service, logger logging.Logger, maxUploadBytes int64) *MoleculeHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &MoleculeHandler{
		svc:            svc,
		logger:         logger,
		validate:       newValidator(),
		maxUploadBytes: maxUploadBytes,
	}
}

// Get handles GET /molecules/{identifier}.
func (h *MoleculeHandler) Get(w http.ResponseWriter, r *http.Request) {
	mol, err := h.svc.Get(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mol)
}

// Add handles POST /add.
func (h *MoleculeHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := bindParams(r, map[string]*string{"identifier": &req.Identifier, "smiles": &req.SMILES}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validate(h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	mol, err := h.svc.Add(r.Context(), &appMol.AddInput{Identifier: req.Identifier, SMILES: req.SMILES})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mol)
}

// Update handles PUT /molecules/{identifier}.
func (h *MoleculeHandler) Update(w http.ResponseWriter, r *http.Request) {
	req := UpdateRequest{Identifier: chi.URLParam(r, "identifier")}
	if err := bindParams(r, map[string]*string{"smiles": &req.SMILES}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validate(h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	mol, err := h.svc.Update(r.Context(), &appMol.UpdateInput{Identifier: req.Identifier, SMILES: req.SMILES})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mol)
}

// Delete handles DELETE /molecules/{identifier}.
func (h *MoleculeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	mol, err := h.svc.Delete(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeDetail(w, http.StatusOK, mol.SMILES+" with identifier "+mol.Identifier+" is deleted")
}

// List handles GET /molecules/.
func (h *MoleculeHandler) List(w http.ResponseWriter, r *http.Request) {
	mols, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if len(mols) == 0 {
		writeDetail(w, http.StatusOK, DetailNoMolecules)
		return
	}
	writeJSON(w, http.StatusOK, mols)
}

// Search handles POST /molecules/search/.
func (h *MoleculeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := bindParams(r, map[string]*string{"substructure": &req.Substructure}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validate(h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Search(r.Context(), &appMol.SearchInput{Substructure: req.Substructure})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch {
	case res.RegistryEmpty:
		writeDetail(w, http.StatusOK, DetailEmptyRegistry)
	case len(res.Matches) == 0:
		writeDetail(w, http.StatusOK, DetailNoMatches)
	default:
		writeJSON(w, http.StatusOK, res.Matches)
	}
}

// Upload handles POST /molecules/upload/.  The part named "file" must be
// declared text/plain.
func (h *MoleculeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, errors.New(errors.CodeInvalidParam, "upload exceeds the maximum size").WithCause(err))
			return
		}
		writeError(w, r, h.logger, errors.New(errors.ErrCodeValidation,
			errors.DefaultMessageForCode(errors.ErrCodeValidation)).
			WithDetail("multipart field \""+uploadField+"\" is required").WithCause(err))
		return
	}
	defer file.Close()

	mt, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || mt != "text/plain" {
		writeError(w, r, h.logger, errors.New(errors.CodeUnsupportedUpload,
			errors.DefaultMessageForCode(errors.CodeUnsupportedUpload)))
		return
	}

	res, err := h.svc.Upload(r.Context(), file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Detail: DetailUploadSuccessful, Added: res.Added, Skipped: res.Skipped})
}
