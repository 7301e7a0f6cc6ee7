package reporting

import "github.com/axdashboard/axdash/app/models"

// stageIndex answers tag questions about a pipeline stage id.
type stageIndex map[string]*models.Stage

func indexStages(stages []models.Stage) stageIndex {
	idx := make(stageIndex, len(stages))
	for i := range stages {
		idx[stages[i].ID] = &stages[i]
	}
	return idx
}

// has reports whether the stage with id carries tag. Unknown ids carry no tags.
func (idx stageIndex) has(id, tag string) bool {
	s, ok := idx[id]
	return ok && s.HasTag(tag)
}
