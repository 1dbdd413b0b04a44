package loader

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/smilemakc/avtrace/internal/domain"
)

var packageAttrRe = regexp.MustCompile(`package="([^"]+)"`)

// actionRecord is one entry of a recorded trace's actions.json.
type actionRecord struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// reactRecord is one entry of a recorded trace's react.json: the model's
// reasoning and the action it decided on for a given frame.
type reactRecord struct {
	Reasoning   string         `json:"reasoning"`
	Action      map[string]any `json:"action"`
	AppName     string         `json:"app_name,omitempty"`
	TaskDesc    string         `json:"task_description,omitempty"`
}

// LoadFramesFromDir reads a recorded trace directory into an ordered frame
// slice. Frame 0 is a synthetic blank frame prepended so every condition
// checker can treat "before the trace started" as a well-defined predecessor.
// Screenshots and accessibility dumps are discovered by scanning for
// integer-named ".jpg"/".xml" files and unioning their indices.
func LoadFramesFromDir(folder string) ([]*domain.Frame, error) {
	actions, err := loadActionsJSON(filepath.Join(folder, "actions.json"))
	if err != nil {
		return nil, err
	}
	reacts, err := loadReactJSON(filepath.Join(folder, "react.json"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("reading trace directory %s", folder), err)
	}

	indexSet := make(map[int]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".jpg" && ext != ".xml" {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idx, convErr := strconv.Atoi(base)
		if convErr != nil {
			continue
		}
		indexSet[idx] = struct{}{}
	}

	indices := make([]int, 0, len(indexSet))
	for idx := range indexSet {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	frames := make([]*domain.Frame, 0, len(indices)+1)
	frames = append(frames, &domain.Frame{Index: 0, Prev: -1, Next: -1})

	for pos, idx := range indices {
		f := &domain.Frame{Index: pos + 1}

		jpgPath := filepath.Join(folder, fmt.Sprintf("%d.jpg", idx))
		if raw, readErr := os.ReadFile(jpgPath); readErr == nil {
			f.Screenshot = raw
			f.ScreenshotB64 = base64.StdEncoding.EncodeToString(raw)
		}

		xmlPath := filepath.Join(folder, fmt.Sprintf("%d.xml", idx))
		if raw, readErr := os.ReadFile(xmlPath); readErr == nil {
			f.XMLText = string(raw)
			if m := packageAttrRe.FindStringSubmatch(f.XMLText); len(m) == 2 {
				f.UI = map[string]any{"package": m[1]}
			}
		}

		var actionStr string
		var actionParams map[string]any
		if rec, ok := actions[idx]; ok {
			actionStr = rec.Action
			actionParams = rec.Params
		}
		f.Action = domain.Action{Type: actionStr, Fields: actionParams}

		if rec, ok := reacts[idx]; ok {
			f.Reasoning = rec.Reasoning
			f.ReactAction = rec.Action
			f.AppName = rec.AppName
			f.TaskDesc = rec.TaskDesc
		}

		var textParts []string
		if f.Reasoning != "" {
			textParts = append(textParts, f.Reasoning)
		}
		if actionStr != "" {
			textParts = append(textParts, actionStr)
		}
		for k, v := range actionParams {
			textParts = append(textParts, fmt.Sprintf("%s=%v", k, v))
		}
		f.Text = strings.Join(textParts, " ")

		frames = append(frames, f)
	}

	for i := range frames {
		frames[i].Prev = i - 1
		if i+1 < len(frames) {
			frames[i].Next = i + 1
		} else {
			frames[i].Next = -1
		}
	}

	return frames, nil
}

func loadActionsJSON(path string) (map[int]actionRecord, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[int]actionRecord{}, nil
	}
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("reading %s", path), err)
	}

	var byIndex map[string]actionRecord
	if err := json.Unmarshal(raw, &byIndex); err != nil {
		var list []actionRecord
		if err2 := json.Unmarshal(raw, &list); err2 != nil {
			return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("parsing %s", path), err)
		}
		out := make(map[int]actionRecord, len(list))
		for i, rec := range list {
			out[i+1] = rec // steps (and their .jpg/.xml files) are numbered from 1
		}
		return out, nil
	}

	out := make(map[int]actionRecord, len(byIndex))
	for k, rec := range byIndex {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			continue
		}
		out[idx] = rec
	}
	return out, nil
}

func loadReactJSON(path string) (map[int]reactRecord, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[int]reactRecord{}, nil
	}
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("reading %s", path), err)
	}

	var byIndex map[string]reactRecord
	if err := json.Unmarshal(raw, &byIndex); err != nil {
		var list []reactRecord
		if err2 := json.Unmarshal(raw, &list); err2 != nil {
			return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("parsing %s", path), err)
		}
		out := make(map[int]reactRecord, len(list))
		for i, rec := range list {
			out[i+1] = rec // steps (and their .jpg/.xml files) are numbered from 1
		}
		return out, nil
	}

	out := make(map[int]reactRecord, len(byIndex))
	for k, rec := range byIndex {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			continue
		}
		out[idx] = rec
	}
	return out, nil
}
