package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/autoshorts/internal/models"
)

var (
	_ list.Item = userItem{}
)

// userItem wraps [models.User] with its schedule to implement [list.Item].
type userItem struct {
	user    *models.User
	entries []*models.ScheduleEntry
}

func (i userItem) FilterValue() string { return i.user.Username }
func (i userItem) Title() string       { return fmt.Sprintf("%s (#%d)", i.user.Username, i.user.ID) }
func (i userItem) Description() string {
	if len(i.entries) == 0 {
		return "not scheduled"
	}
	slots := make([]string, len(i.entries))
	for n, e := range i.entries {
		slots[n] = e.Slot.String()
	}
	return strings.Join(slots, " • ")
}
