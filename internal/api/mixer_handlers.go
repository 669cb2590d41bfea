package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"ftbeamlab/internal/models"
	"ftbeamlab/pkg/mixer"
	"ftbeamlab/pkg/spectral"
	"ftbeamlab/pkg/visualization"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "Server is running"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	w.Header().Set(SessionHeader, id)
	writeJSON(w, http.StatusCreated, models.SessionResponse{SessionID: id})
}

func (s *Server) handleDropSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Drop(r.PathValue("sid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// store resolves the session of r.
func (s *Server) store(r *http.Request) (*mixer.Store, error) {
	return s.sessions.Store(r.Header.Get(SessionHeader))
}

// uploadBody returns the image bytes of an upload: the "file" part of a
// multipart form, or the raw body otherwise.
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, badRequest("missing multipart file: %v", err)
	}
	return file, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	body, err := uploadBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	// Decode fully before touching the store so a bad upload changes nothing.
	img, err := spectral.Decode(id, body, s.cfg.Server.MaxImagePixels)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := store.Add(img); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.StatusResponse{Message: "Uploaded"})
}

func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	var req models.MixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	mode, err := mixer.ParseMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	mask, err := req.Region.Mask()
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := store.Mix(mixer.Weights(req.Weights), mode, mask)
	if err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, visualization.ToGray(visualization.Normalize(out, s.cfg.Mixer.Epsilon)))
}

// percentParam reads a 0..200 percentage query parameter, 100 when absent.
func percentParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 100, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return f, nil
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := spectral.ParseComponent(r.PathValue("component"))
	if err != nil {
		writeError(w, err)
		return
	}
	brightness, err := percentParam(r, "brightness")
	if err != nil {
		writeError(w, err)
		return
	}
	contrast, err := percentParam(r, "contrast")
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := store.Component(r.PathValue("id"), c)
	if err != nil {
		writeError(w, err)
		return
	}

	img := visualization.Preview(c, raw, s.cfg.Mixer.Epsilon)
	if brightness != 100 || contrast != 100 {
		if img, err = visualization.Adjust(img, brightness, contrast); err != nil {
			writeError(w, err)
			return
		}
	}
	writePNG(w, img)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list := models.ImageList{Images: []models.ImageInfo{}}
	for _, id := range store.IDs() {
		err := store.With(id, func(img *spectral.Image) error {
			list.Images = append(list.Images, models.ImageInfo{ID: id, Width: img.Width(), Height: img.Height()})
			return nil
		})
		// Removed between IDs and With.
		if errors.Is(err, mixer.ErrNotFound) {
			continue
		}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleImageStats(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var resp struct {
		models.ImageInfo
		spectral.Stats
	}
	err = store.With(r.PathValue("id"), func(img *spectral.Image) error {
		resp.ImageInfo = models.ImageInfo{ID: img.ID, Width: img.Width(), Height: img.Height()}
		resp.Stats = spectral.Describe(img.Grid())
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompareImages(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ref, err := store.Component(r.PathValue("id"), spectral.Raw)
	if err != nil {
		writeError(w, err)
		return
	}
	got, err := store.Component(r.PathValue("other"), spectral.Raw)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := spectral.Compare(ref, got)
	if err != nil {
		// An upload between the two reads resized the store.
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := store.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearImages(w http.ResponseWriter, r *http.Request) {
	store, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	store.Clear()
	w.WriteHeader(http.StatusNoContent)
}
