package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zboralski/vtabledump/internal/vtable"
)

type vtableItem struct {
	rec *vtable.Record
}

func (i vtableItem) Title() string { return i.rec.Name }
func (i vtableItem) Description() string {
	kind := "—"
	if i.rec.Typeinfo != nil {
		kind = i.rec.Typeinfo.Kind.String()
	}
	return fmt.Sprintf("%s  %d vftable(s)", kind, len(i.rec.Vftables))
}
func (i vtableItem) FilterValue() string { return i.rec.Name }

type browseModel struct {
	list list.Model
}

var detailStyleBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

func newBrowseModel(result *vtable.Result) browseModel {
	items := make([]list.Item, len(result.Records))
	for i, rec := range result.Records {
		items[i] = vtableItem{rec: rec}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "vtables"

	return browseModel{list: l}
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-detailHeight(m))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func detailHeight(m browseModel) int { return 8 }

func (m browseModel) View() string {
	var detail string
	if item, ok := m.list.SelectedItem().(vtableItem); ok {
		detail = renderDetail(item.rec)
	}
	return m.list.View() + "\n" + detailStyleBox.Render(detail)
}

func renderDetail(rec *vtable.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rec.Name)
	if rec.Typeinfo != nil {
		fmt.Fprintf(&b, "typeinfo: %s  name: _Z%s\n", rec.Typeinfo.Kind.String(), rec.Typeinfo.Name)
	}
	for i, vft := range rec.Vftables {
		fmt.Fprintf(&b, "vftable %d: %d member(s)\n", i, len(vft))
		for j, m := range vft {
			if j >= 5 {
				fmt.Fprintf(&b, "  ... %d more\n", len(vft)-j)
				break
			}
			fmt.Fprintf(&b, "  [%d] %s\n", j, m.Name)
		}
	}
	return b.String()
}

func runBrowse(cmd *cobra.Command, args []string) error {
	path := args[0]
	loader, idx, err := openAndIndex(path)
	if err != nil {
		return err
	}
	defer loader.Close()

	result, err := vtable.Extract(loader, idx, true, nil)
	if err != nil {
		return loadError{fmt.Errorf("extract vtables: %w", err)}
	}
	if len(result.Records) == 0 {
		fmt.Println("no vtables found")
		return nil
	}

	p := tea.NewProgram(newBrowseModel(result), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
