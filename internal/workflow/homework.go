package workflow

// HomeworkColor encodes homework state as the highlight color shown on the mushaf page.
type HomeworkColor string

const (
	// HomeworkPending is the green highlight of unfinished homework.
	HomeworkPending HomeworkColor = "green"
	// HomeworkCompleted is the gold highlight of finished homework.
	HomeworkCompleted HomeworkColor = "gold"
)

// CompleteHomework turns green homework gold. Gold is terminal.
func CompleteHomework(current HomeworkColor, completedBy uint) (HomeworkColor, error) {
	if completedBy == 0 {
		return current, required("completed_by")
	}

	switch current {
	case HomeworkPending:
		return HomeworkCompleted, nil
	case HomeworkCompleted:
		return current, ErrAlreadyCompleted
	default:
		return current, invalid("homework", string(current), "complete")
	}
}

// HomeworkDeletable reports whether homework may still be removed.
func HomeworkDeletable(color HomeworkColor) bool {
	return color == HomeworkPending
}
