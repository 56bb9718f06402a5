package extractors

import (
	"bytes"
	"encoding/json"
	"strings"

	"unification-service/internal/core/domain"
)

// defaultStageName - стадия для хода строительства, где есть только фото
const defaultStageName = "Строительство"

type rawStage struct {
	StageNumber domain.Number     `json:"stage_number"`
	Stage       string            `json:"stage"`
	Name        string            `json:"name"`
	Date        string            `json:"date"`
	Photos      domain.StringList `json:"photos"`
}

type rawProgress struct {
	Stages json.RawMessage   `json:"construction_stages"`
	Photos domain.StringList `json:"photos"`
}

// ConstructionProgress принимает три формы: список стадий, объект с
// construction_stages и объект только с photos. Пустой или неизвестный документ
// дает false.
func ConstructionProgress(raw json.RawMessage) (domain.ConstructionProgress, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return domain.ConstructionProgress{}, false
	}

	switch raw[0] {
	case '[':
		return stagesFromList(raw)
	case '{':
		var doc rawProgress
		if err := json.Unmarshal(raw, &doc); err != nil {
			return domain.ConstructionProgress{}, false
		}
		if progress, ok := stagesFromList(doc.Stages); ok {
			return progress, true
		}
		if len(doc.Photos) > 0 {
			return domain.ConstructionProgress{ConstructionStages: []domain.ConstructionStage{{
				StageNumber: 1,
				Stage:       defaultStageName,
				Date:        "",
				Photos:      []string(doc.Photos),
			}}}, true
		}
	}
	return domain.ConstructionProgress{}, false
}

func stagesFromList(raw json.RawMessage) (domain.ConstructionProgress, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return domain.ConstructionProgress{}, false
	}
	var list []rawStage
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return domain.ConstructionProgress{}, false
	}

	stages := make([]domain.ConstructionStage, 0, len(list))
	for i, s := range list {
		number, ok := s.StageNumber.Int()
		if !ok || number < 1 {
			number = i + 1
		}
		photos := []string(s.Photos)
		if photos == nil {
			photos = []string{}
		}
		stages = append(stages, domain.ConstructionStage{
			StageNumber: number,
			Stage:       strings.TrimSpace(firstNonEmpty(s.Stage, s.Name)),
			Date:        strings.TrimSpace(s.Date),
			Photos:      photos,
		})
	}
	return domain.ConstructionProgress{ConstructionStages: stages}, true
}
