package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/sheet"
)

// importForm holds the non-file fields of an import upload.
type importForm struct {
	AutoGenerate   bool   `json:"auto_generate"`
	AntiCheatLevel string `json:"anti_cheat_level" validate:"omitempty,oneof=basic strict max"`
}

// handleImport accepts a multipart upload with a "file" part plus optional
// auto_generate and anti_cheat_level fields, and runs the import. Failed
// imports answer with the abort reason and the partial result.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, r, fmt.Errorf("%w: %v", errTooLarge, err))
			return
		}
		s.respondError(w, r, &core.ValidationError{Reason: "invalid form: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	form := importForm{
		AutoGenerate:   formBool(r.FormValue("auto_generate")),
		AntiCheatLevel: strings.ToLower(strings.TrimSpace(r.FormValue("anti_cheat_level"))),
	}
	if err := s.validate.Struct(form); err != nil {
		s.respondError(w, r, validationError(err))
		return
	}

	log := logging.WithFields(r.Context(), "file", header.Filename, "size", header.Size)
	rows, err := sheet.Decode(header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	log.Info("import accepted", "rows", len(rows), "auto_generate", form.AutoGenerate)

	result, err := s.service.ImportSpreadsheet(r.Context(), rows, core.ImportOptions{
		AutoGenerate:   form.AutoGenerate,
		AntiCheatLevel: core.Strictness(form.AntiCheatLevel),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImportTemplate downloads the import template as csv (default) or
// xlsx.
func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	format := sheet.FormatCSV
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		var err error
		if format, err = sheet.FormatOf("template." + f); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", sheet.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam_import_template.%s"`, format))
	if err := sheet.WriteTemplate(w, format); err != nil {
		logging.FromContext(r.Context()).Error("write template failed", "format", format, "error", err)
	}
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
