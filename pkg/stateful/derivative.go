package stateful

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
)

func (h *Handlers) derivativeDefinitions() []Definition {
	return []Definition{
		def("derivative.job", "POST", "/modelderivative/v2/designdata/job", h.createJob),
		def("derivative.manifest", "GET", "/modelderivative/v2/designdata/{urn}/manifest", h.getManifest),
		def("derivative.manifest.delete", "DELETE", "/modelderivative/v2/designdata/{urn}/manifest", h.deleteManifest),
	}
}

var urnEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.StdEncoding,
}

// DecodeURN aceita a URN em texto ou codificada em base64 (url-safe ou padrão, com ou sem padding).
func DecodeURN(raw string) string {
	if strings.HasPrefix(raw, "urn:") {
		return raw
	}
	for _, enc := range urnEncodings {
		decoded, err := enc.DecodeString(raw)
		if err == nil && utf8.Valid(decoded) && strings.HasPrefix(string(decoded), "urn:") {
			return string(decoded)
		}
	}
	return raw
}

type jobRequest struct {
	Input struct {
		URN string `json:"urn"`
	} `json:"input"`
	Output struct {
		Destination struct {
			Region string `json:"region"`
		} `json:"destination"`
		Formats []struct {
			Type string `json:"type"`
		} `json:"formats"`
	} `json:"output"`
}

func (h *Handlers) createJob(ctx context.Context, req *types.Request) (*types.Response, error) {
	var in jobRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.Input.URN == "" {
		return nil, faults.Validation("input.urn é obrigatório")
	}
	outputType := ""
	if len(in.Output.Formats) > 0 {
		outputType = in.Output.Formats[0].Type
	}
	force := strings.EqualFold(req.Header.Get("x-ads-force"), "true")

	job, err := h.store.Translations.Create(DecodeURN(in.Input.URN), outputType, strings.ToUpper(in.Output.Destination.Region), force)
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if !force {
		status = http.StatusCreated
	}
	return types.JSON(status, map[string]interface{}{
		"result":       "created",
		"urn":          in.Input.URN,
		"acceptedJobs": map[string]interface{}{"output": map[string]interface{}{"formats": []interface{}{map[string]interface{}{"type": job.OutputType}}}},
	}), nil
}

func manifest(urn string, job state.TranslationJob) map[string]interface{} {
	derivatives := []interface{}{}
	if job.Status != state.StatusPending {
		derivatives = append(derivatives, map[string]interface{}{
			"status":     string(job.Status),
			"progress":   job.Progress,
			"outputType": job.OutputType,
			"children":   []interface{}{},
		})
	}
	return map[string]interface{}{
		"type":         "manifest",
		"urn":          urn,
		"status":       string(job.Status),
		"progress":     job.Progress,
		"region":       job.Region,
		"version":      "1.0",
		"hasThumbnail": job.Status == state.StatusSuccess,
		"derivatives":  derivatives,
	}
}

func (h *Handlers) getManifest(ctx context.Context, req *types.Request) (*types.Response, error) {
	raw := req.Param("urn")
	job, err := h.store.Translations.Get(DecodeURN(raw))
	if err != nil {
		return nil, err
	}
	return ok(manifest(raw, job))
}

func (h *Handlers) deleteManifest(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.Translations.Delete(DecodeURN(req.Param("urn"))); err != nil {
		return nil, err
	}
	return ok(map[string]interface{}{"result": "success"})
}
