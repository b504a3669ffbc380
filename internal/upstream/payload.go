package upstream

import (
	"fmt"
	"strings"

	"sdengine/internal/domain"
)

// Regional-prompter script arguments per layout, in the 17-slot positional
// form the extension expects: Active, Debug, Mode, DivideMode, MaskMode,
// PromptMode, Ratios, BaseRatios, UseBase, UseCommon, UseCommonNeg, GenMode,
// DisableConvertAND, LoraTextEnc, LoraUNet, Threshold, MaskPath.
var regionalScriptArgs = map[domain.RegionalLayout][]any{
	domain.LayoutVertical:     {true, false, "Matrix", "Vertical", "Mask", "Prompt", "1,1", "", false, true, false, "Attention", false, "0", "0", "0", ""},
	domain.LayoutHorizontal:   {true, false, "Matrix", "Horizontal", "Mask", "Prompt", "1,1", "", false, true, false, "Attention", false, "0", "0", "0", ""},
	domain.LayoutThreeColumns: {true, false, "Matrix", "Vertical", "Mask", "Prompt", "1,1,1", "", false, true, false, "Attention", false, "0", "0", "0", ""},
	domain.LayoutFourColumns:  {true, false, "Matrix", "Vertical", "Mask", "Prompt", "1,1,1,1", "", false, true, false, "Attention", false, "0", "0", "0", ""},
	domain.LayoutQuadrants:    {true, false, "Matrix", "Vertical", "Mask", "Prompt", "2,2", "", false, true, false, "Attention", false, "0", "0", "0", ""},
}

// adapterPromptTags renders the spec's adapters as prompt tags, stripping the
// catalog file extension from each name.
func adapterPromptTags(adapters []domain.AdapterRef) string {
	if len(adapters) == 0 {
		return ""
	}
	tags := make([]string, 0, len(adapters))
	for _, a := range adapters {
		name := a.Filename
		for _, ext := range []string{".safetensors", ".ckpt", ".pt"} {
			name = strings.TrimSuffix(name, ext)
		}
		tags = append(tags, fmt.Sprintf("<lora:%s:%g>", name, a.Weight))
	}
	return strings.Join(tags, " ")
}

// payloadFromSpec serializes a specification into the generator's txt2img
// request body.
func payloadFromSpec(spec *domain.GenerationSpec) map[string]any {
	prompt := spec.Prompt
	if tags := adapterPromptTags(spec.Adapters); tags != "" {
		prompt = strings.TrimSpace(prompt + " " + tags)
	}

	payload := map[string]any{
		"prompt":          prompt,
		"negative_prompt": spec.NegativePrompt,
		"sampler_name":    spec.Sampler,
		"steps":           spec.Steps,
		"cfg_scale":       spec.GuidanceScale,
		"width":           spec.Width,
		"height":          spec.Height,
		"seed":            spec.Seed,
		"batch_count":     spec.BatchCount,
		"batch_size":      spec.BatchSize,
	}

	if spec.Checkpoint != "" {
		payload["override_settings"] = map[string]any{
			"sd_model_checkpoint": spec.Checkpoint,
		}
		payload["override_settings_restore_afterwards"] = true
	}

	if spec.Hires != nil {
		payload["enable_hr"] = true
		payload["hr_scale"] = spec.Hires.Scale
		payload["denoising_strength"] = spec.Hires.DenoisingStrength
		if spec.Hires.Upscaler != "" {
			payload["hr_upscaler"] = spec.Hires.Upscaler
			payload["hr_second_pass_steps"] = spec.Hires.SecondPassSteps
		}
	}

	scripts := map[string]any{}
	if len(spec.AuxUnits) > 0 {
		units := make([]map[string]any, 0, len(spec.AuxUnits))
		for _, u := range spec.AuxUnits {
			unit := map[string]any{
				"enabled":        u.Enabled,
				"model":          u.Model,
				"weight":         u.Weight,
				"guidance_start": u.GuidanceStart,
				"guidance_end":   u.GuidanceEnd,
			}
			if u.Preprocessor != "" {
				unit["module"] = u.Preprocessor
			}
			units = append(units, unit)
		}
		scripts["ControlNet"] = map[string]any{"args": units}
	}
	if spec.Regional != nil {
		if args, ok := regionalScriptArgs[spec.Regional.Layout]; ok {
			scripts["Regional Prompter"] = map[string]any{"args": args}
		}
	}
	if len(scripts) > 0 {
		payload["alwayson_scripts"] = scripts
	}

	return payload
}
