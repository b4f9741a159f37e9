package handlers

import (
	"errors"
	"io"
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/services"
)

type VoyantHandler struct {
	Service *services.VoyantService
}

func (h *VoyantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVoyantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	voyant, err := h.Service.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, voyant)
}

func (h *VoyantHandler) List(w http.ResponseWriter, r *http.Request) {
	voyants, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voyants)
}

func (h *VoyantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	voyant, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voyant)
}

func (h *VoyantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdateVoyantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	voyant, err := h.Service.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voyant)
}

func (h *VoyantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage accepts a multipart "image" part and stores it as the portrait.
func (h *VoyantHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageSize+(1<<20))
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, models.NewValidationError("image", "a file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, models.NewValidationError("image", "file is too large"))
			return
		}
		writeError(w, r, err)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	voyant, err := h.Service.UploadImage(r.Context(), id, contentType, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voyant)
}

func (h *VoyantHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	voyants, err := h.Service.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voyants)
}

func (h *VoyantHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
