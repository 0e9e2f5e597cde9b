package provider

import (
	"fmt"

	"github.com/motionforge/api/internal/model"
)

// Built-in adapter ids, in default priority order
const (
	AdapterRunway20241106 = "runway-2024-11-06"
	AdapterGenV1          = "gen-v1"
	AdapterGenV2Nested    = "gen-v2-nested"
)

// DefaultAdapters returns the built-in contract versions in priority order.
// Every call returns fresh values.
func DefaultAdapters() []Adapter {
	return []Adapter{
		runway20241106(),
		genV1(),
		genV2Nested(),
	}
}

// Select returns the adapters named by ids, in that order. An empty ids
// slice selects all adapters unchanged.
func Select(adapters []Adapter, ids []string) ([]Adapter, error) {
	if len(ids) == 0 {
		return adapters, nil
	}

	byID := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.ID] = a
	}

	selected := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, &UnknownAdapterError{AdapterID: id}
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// runway20241106 is the image_to_video task API with a dated version header.
// Progress is 0–1 and the video is the first element of output.
func runway20241106() Adapter {
	return Adapter{
		ID:         AdapterRunway20241106,
		BaseURL:    "https://api.dev.runwayml.com",
		SubmitPath: "/v1/image_to_video",
		StatusPath: "/v1/tasks/{id}",
		Headers: []Header{
			{Name: "X-Runway-Version", Value: "2024-11-06"},
		},
		Request: RequestMap{
			PromptField: "promptText",
			ImageField:  "promptImage",
			Static: map[string]any{
				"model":    "gen3a_turbo",
				"duration": 5,
				"ratio":    "1280:768",
			},
		},
		Response: ResponseMap{
			IDField:          "id",
			StatusField:      "status",
			ProgressField:    "progress",
			ProgressScale:    ProgressScaleUnit,
			OutputField:      "output[0]",
			FailureField:     "failure",
			FailureCodeField: "failureCode",
		},
	}
}

// genV1 is the older generations API: lower-case version header, flat
// init_image_url, integer percent progress and output.url.
func genV1() Adapter {
	return Adapter{
		ID:         AdapterGenV1,
		BaseURL:    "https://api.runwayml.com",
		SubmitPath: "/v1/generations",
		StatusPath: "/v1/generations/{id}",
		Headers: []Header{
			{Name: "x-api-version", Value: "1"},
		},
		Request: RequestMap{
			PromptField: "prompt",
			ImageField:  "init_image_url",
			Static: map[string]any{
				"model":    "gen3a_turbo",
				"duration": 5,
			},
		},
		Response: ResponseMap{
			IDField:       "id",
			StatusField:   "status",
			ProgressField: "progress",
			ProgressScale: ProgressScalePercent,
			OutputField:   "output.url",
			FailureField:  "error",
		},
	}
}

// genV2Nested nests generation inputs under "input", sends no version
// header and reports output.video_url.
func genV2Nested() Adapter {
	return Adapter{
		ID:         AdapterGenV2Nested,
		BaseURL:    "https://api.runwayml.com",
		SubmitPath: "/v2/tasks",
		StatusPath: "/v2/tasks/{id}",
		Request: RequestMap{
			PromptField: "prompt",
			ImageField:  "input.image",
			Static: map[string]any{
				"model": "gen4_turbo",
				"input": map[string]any{
					"duration": 5,
					"ratio":    "1280:720",
				},
			},
		},
		Response: ResponseMap{
			IDField:       "id",
			StatusField:   "status",
			ProgressField: "progress",
			ProgressScale: ProgressScalePercent,
			OutputField:   "output.video_url",
			FailureField:  "failure_reason",
			States: map[string]model.JobState{
				"in_queue": model.JobStateQueued,
			},
		},
	}
}

// Preset returns a built-in adapter by id
func Preset(id string) (Adapter, error) {
	for _, a := range DefaultAdapters() {
		if a.ID == id {
			return a, nil
		}
	}
	return Adapter{}, fmt.Errorf("no built-in adapter %q", id)
}
