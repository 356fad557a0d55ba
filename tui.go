package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type stateMsg struct{ State dictationState }
type recordingTickMsg struct{ Elapsed time.Duration }
type audioLevelMsg struct{ Level float64 }
type partialMsg struct{ Text string }
type committedMsg struct{ Text string }
type errorMsg struct{ Err error }
type permissionMsg struct{ Text string }
type modeLineMsg struct{ Text string }
type deviceLineMsg struct{ Text string }
type tickMsg time.Time

type tuiModel struct {
	state         dictationState
	frame         int
	elapsed       time.Duration
	audioLevel    float64
	width, height int

	keyLabel   string
	modeLine   string // "deepgram | en-US"
	deviceLine string
	permission string
	errText    string
	partial    string
	lastText   string
	count      int

	onCancel func()
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func newTUIProgram(keyLabel string, onCancel func()) *tea.Program {
	m := tuiModel{keyLabel: keyLabel, onCancel: onCancel}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards controller events to the running program.
type tuiSink struct{}

func (tuiSink) StateChanged(s dictationState)       { tuiSend(stateMsg{State: s}) }
func (tuiSink) RecordingTick(elapsed time.Duration) { tuiSend(recordingTickMsg{Elapsed: elapsed}) }
func (tuiSink) AudioLevel(level float64)            { tuiSend(audioLevelMsg{Level: level}) }
func (tuiSink) Partial(text string)                 { tuiSend(partialMsg{Text: text}) }
func (tuiSink) Committed(text string)               { tuiSend(committedMsg{Text: text}) }
func (tuiSink) Error(err error)                     { tuiSend(errorMsg{Err: err}) }
func (tuiSink) PermissionWarning(msg string)        { tuiSend(permissionMsg{Text: msg}) }
func (tuiSink) ModeLine(text string)                { tuiSend(modeLineMsg{Text: text}) }
func (tuiSink) DeviceLine(text string)              { tuiSend(deviceLineMsg{Text: text}) }

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			// The controller reports back through Send, so it must not
			// run on the event loop.
			if m.onCancel != nil && m.state != stateIdle {
				cancel := m.onCancel
				return m, func() tea.Msg { cancel(); return nil }
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case stateMsg:
		m.state = msg.State
		switch msg.State {
		case stateRecording:
			m.elapsed = 0
			m.audioLevel = 0
			m.partial = ""
			m.errText = ""
			m.permission = ""
		case stateIdle:
			m.audioLevel = 0
			m.partial = ""
		}

	case recordingTickMsg:
		m.elapsed = msg.Elapsed

	case audioLevelMsg:
		if m.state == stateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case partialMsg:
		m.partial = msg.Text

	case committedMsg:
		m.count++
		m.lastText = msg.Text
		m.partial = ""

	case errorMsg:
		m.errText = msg.Err.Error()

	case permissionMsg:
		m.permission = msg.Text

	case modeLineMsg:
		m.modeLine = msg.Text

	case deviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func levelMeter(level float64, width int) string {
	n := int(math.Round(math.Min(level*10, 1) * float64(width)))
	return strings.Repeat("▮", n) + strings.Repeat("▯", width-n)
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case stateRecording:
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds()))
	case stateStopping:
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Render("◌ stopping")
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("○ STANDBY")
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45
	recording := m.state == stateRecording
	level := m.audioLevel
	if !recording {
		level = 0
	}

	eye := renderHALEye(m.frame, level, recording)

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoLines := []string{m.statusLine()}
	if recording {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render(levelMeter(level, 20)))
	}
	if m.modeLine != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.modeLine))
	}
	if m.deviceLine != "" {
		infoLines = append(infoLines, dim.Render(m.deviceLine))
	}
	if m.permission != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("⚠ "+m.permission))
	}

	infoLines = append(infoLines, "")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := helpStyle.Bold(true)
	infoLines = append(infoLines,
		boldStyle.Render("double-tap "+m.keyLabel)+helpStyle.Render(" to dictate"),
		boldStyle.Render("esc")+helpStyle.Render(" cancel  ")+boldStyle.Render("ctrl+c")+helpStyle.Render(" quit"),
		helpStyle.Render("myvoice "+version),
	)

	for _, line := range infoLines {
		eye += line + "\n"
	}
	eyeLines := strings.Split(eye, "\n")

	logWidth := m.width - eyeWidth - 1
	if logWidth < 20 {
		logWidth = 20
	}
	wrapWidth := logWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var panel strings.Builder
	if m.partial != "" {
		panel.WriteString(dim.Render("Hearing") + "\n\n")
		for _, line := range wrapText(m.partial, wrapWidth) {
			panel.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true).Render(line) + "\n")
		}
		panel.WriteString("\n")
	}
	if m.lastText != "" {
		panel.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")).
			Render(fmt.Sprintf("Last transcript (#%d)", m.count)) + "\n\n")
		textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
		for _, line := range wrapText(m.lastText, wrapWidth) {
			panel.WriteString(textStyle.Render(line) + "\n")
		}
	} else if m.partial == "" {
		panel.WriteString(dim.Render("No transcripts yet"))
	}
	if m.errText != "" {
		panel.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("Error: "+m.errText) + "\n")
	}

	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(panel.String())

	eyePadded := make([]string, m.height)
	for i := range eyePadded {
		if i < len(eyeLines) {
			eyePadded[i] = eyeLines[i]
		} else {
			eyePadded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}

	eyePanel := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(eyePadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, logPanel)
}

// Pre-computed pixel styles to avoid allocations in render loop
var (
	pixelColorsRec  = []string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle = []string{"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"}
	pixelStylesRec  [16]lipgloss.Style
	pixelStylesIdle [16]lipgloss.Style
	pixelBgRec      [16][16]lipgloss.Style
	pixelBgIdle     [16][16]lipgloss.Style
)

func init() {
	for i, c := range pixelColorsRec {
		if c != "" {
			pixelStylesRec[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
	for i, c := range pixelColorsIdle {
		if c != "" {
			pixelStylesIdle[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
	for i, fg := range pixelColorsRec {
		for j, bg := range pixelColorsRec {
			if fg != "" && bg != "" {
				pixelBgRec[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
			}
		}
	}
	for i, fg := range pixelColorsIdle {
		for j, bg := range pixelColorsIdle {
			if fg != "" && bg != "" {
				pixelBgIdle[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
			}
		}
	}
}


func renderHALEye(frame int, level float64, recording bool) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	// Voice-reactive breathing
	var breathe float64
	if recording {
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*10.0 - 0.05
	} else {
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}

	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4},  // red rings: high reactivity
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := r.radius + breathe*r.breatheAmt*20
				if radius > 10.0 {
					radius = 10.0
				}
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// Glass reflections
	type spot struct {
		ox, oy float64
		radius float64
		color  int
	}
	dSide := 9.0
	dSide2 := 7.2
	dTop := 10.0
	dTop2 := 8.2
	spots := []spot{
		{-dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{-dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -dTop, 0.8, 14},
		{0, -dTop2, 0.6, 15},
		{dSide * 0.707, -dSide * 0.707, 0.7, 14},
		{dSide2 * 0.707, -dSide2 * 0.707, 0.4, 15},
		{0, -2.0, 0.6, 14},
	}
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			px := float64(x) - centerX
			py := float64(y) - centerY
			for _, s := range spots {
				dx := px - s.ox
				dy := py - s.oy
				rLen := math.Sqrt(s.ox*s.ox + s.oy*s.oy)
				if rLen < 0.001 {
					rLen = 1
				}
				tx, ty := -s.oy/rLen, s.ox/rLen
				dt := dx*tx + dy*ty
				dn := dx*(-ty) + dy*tx
				if (dt*dt)/9.0+dn*dn < s.radius*s.radius {
					pixels[y][x] = s.color
				}
			}
		}
	}

	// Use pre-computed styles based on recording state
	var styles *[16]lipgloss.Style
	var bgStyles *[16][16]lipgloss.Style
	if recording {
		styles = &pixelStylesRec
		bgStyles = &pixelBgRec
	} else {
		styles = &pixelStylesIdle
		bgStyles = &pixelBgIdle
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			topY := cy * 2
			botY := cy*2 + 1
			top := 0
			bot := 0
			if topY < pixH {
				top = pixels[topY][cx]
			}
			if botY < pixH {
				bot = pixels[botY][cx]
			}
			if top == 0 && bot == 0 {
				result.WriteString(" ")
			} else if top == bot {
				result.WriteString(styles[top].Render("█"))
			} else if top != 0 && bot == 0 {
				result.WriteString(styles[top].Render("▀"))
			} else if top == 0 && bot != 0 {
				result.WriteString(styles[bot].Render("▄"))
			} else {
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}


// wrapText breaks on spaces so that no line exceeds width runes, except
// single words longer than width.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 1
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var cur []rune
	for _, w := range words {
		wr := []rune(w)
		switch {
		case len(cur) == 0:
			cur = wr
		case len(cur)+1+len(wr) <= width:
			cur = append(append(cur, ' '), wr...)
		default:
			lines = append(lines, string(cur))
			cur = wr
		}
	}
	return append(lines, string(cur))
}
