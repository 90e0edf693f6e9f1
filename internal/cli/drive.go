package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/config"
	"github.com/SeamusWaldron/carcontrol/internal/recorder"
	"github.com/SeamusWaldron/carcontrol/internal/storage"
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Interactive joystick mode",
	Long: `Open the drive screen. The device list is scanned on start.

Keyboard shortcuts:
  ↑ ↓ ← → / w s a d  - Send Forward, Backward, Left, Right
  space / r          - Send Rotate
  tab / shift+tab    - Select device
  enter              - Connect to the selected device
  x                  - Disconnect
  l                  - Scan for devices again
  q/Esc              - Quit

Dragging with the mouse moves the on-screen stick readout (left button
for direction, right button for rotation). The stick does not drive the car.`,
	RunE: runDrive,
}

func init() {
	rootCmd.AddCommand(driveCmd)
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	connectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Width(12).
			Align(lipgloss.Center)

	activeButtonStyle = buttonStyle.
				BorderForeground(lipgloss.Color("39")).
				Foreground(lipgloss.Color("39")).
				Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

// logLines is how many log lines the drive screen shows.
const logLines = 8

// Messages
type stateChangedMsg struct{}
type opDoneMsg struct{ err error }

var keyDirections = map[string]carcontrol.Direction{
	"up":    carcontrol.Forward,
	"w":     carcontrol.Forward,
	"down":  carcontrol.Backward,
	"s":     carcontrol.Backward,
	"left":  carcontrol.Left,
	"a":     carcontrol.Left,
	"right": carcontrol.Right,
	"d":     carcontrol.Right,
	" ":     carcontrol.Rotate,
	"r":     carcontrol.Rotate,
}

// Model
type driveModel struct {
	ctx  context.Context
	ctrl *carcontrol.Controller

	state   carcontrol.State
	changed chan struct{}

	// Device selection
	cursor     int
	cursorSet  bool
	lastDevice *carcontrol.Device

	// Mouse stick readout
	stick      *carcontrol.Stick
	dragX      int
	dragY      int
	dragButton tea.MouseButton
	dragging   bool

	pending  int // operations in flight
	width    int
	height   int
	quitting bool
}

func newDriveModel(ctx context.Context, ctrl *carcontrol.Controller, lastDevice *carcontrol.Device) *driveModel {
	m := &driveModel{
		ctx:        ctx,
		ctrl:       ctrl,
		state:      ctrl.State(),
		changed:    make(chan struct{}, 1),
		lastDevice: lastDevice,
		stick:      carcontrol.NewStick(),
	}

	// Coalesce notifications; the model reads the latest state itself.
	ctrl.Subscribe(func(carcontrol.State) {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	})
	return m
}

func (m *driveModel) Init() tea.Cmd {
	return tea.Batch(
		m.listenForState(),
		m.run(m.ctrl.Start),
	)
}

func (m *driveModel) listenForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changed:
			return stateChangedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// run executes a blocking controller operation off the UI goroutine.
func (m *driveModel) run(op func(context.Context) error) tea.Cmd {
	m.pending++
	return func() tea.Msg {
		return opDoneMsg{err: op(m.ctx)}
	}
}

func (m *driveModel) press(d carcontrol.Direction) tea.Cmd {
	return m.run(func(ctx context.Context) error {
		return m.ctrl.Press(ctx, d)
	})
}

func (m *driveModel) connectSelected() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.state.Devices) {
		return nil
	}
	dev := m.state.Devices[m.cursor]
	return m.run(func(ctx context.Context) error {
		return m.ctrl.Connect(ctx, dev)
	})
}

func (m *driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if d, ok := keyDirections[key]; ok {
			return m, m.press(d)
		}

		switch key {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "tab":
			if n := len(m.state.Devices); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.cursorSet = true
			}

		case "shift+tab":
			if n := len(m.state.Devices); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.cursorSet = true
			}

		case "enter":
			return m, m.connectSelected()

		case "x":
			if m.state.Connected {
				return m, m.run(m.ctrl.Disconnect)
			}

		case "l":
			return m, m.run(m.ctrl.Scan)
		}

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case stateChangedMsg:
		m.setState(m.ctrl.State())
		return m, m.listenForState()

	case opDoneMsg:
		// Failures are already in the log.
		if m.pending > 0 {
			m.pending--
		}
		m.setState(m.ctrl.State())
	}

	return m, nil
}

func (m *driveModel) setState(s carcontrol.State) {
	m.state = s
	if m.cursor >= len(s.Devices) {
		m.cursor = 0
	}
	if m.cursorSet || m.lastDevice == nil {
		return
	}
	for i, d := range s.Devices {
		if d.Address == m.lastDevice.Address {
			m.cursor = i
			m.cursorSet = true
			return
		}
	}
}

// handleMouse feeds drags into the stick. Screen y grows downward and is
// used as-is, so dragging down reads Forward.
func (m *driveModel) handleMouse(msg tea.MouseMsg) {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft && msg.Button != tea.MouseButtonRight {
			return
		}
		m.dragging = true
		m.dragButton = msg.Button
		m.dragX, m.dragY = msg.X, msg.Y

	case tea.MouseActionMotion:
		if !m.dragging {
			return
		}
		dx := float64(msg.X - m.dragX)
		dy := float64(msg.Y - m.dragY)
		if m.dragButton == tea.MouseButtonRight {
			m.stick.Rotate(dx, dy)
		} else {
			m.stick.Drag(dx, dy)
		}

	case tea.MouseActionRelease:
		m.dragging = false
	}
}

func (m *driveModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("carcontrol"))
	b.WriteString("\n\n")

	// Connection
	if m.state.Connected && m.state.Selected != nil {
		b.WriteString(connectedStyle.Render("● Connected: " + m.state.Selected.String()))
	} else {
		b.WriteString(statusStyle.Render("○ Not connected"))
	}
	if m.pending > 0 {
		b.WriteString(statusStyle.Render("  (working...)"))
	}
	b.WriteString("\n\n")

	// Devices
	b.WriteString("Devices:\n")
	if len(m.state.Devices) == 0 {
		b.WriteString(statusStyle.Render("  none, press l to scan"))
		b.WriteString("\n")
	}
	for i, d := range m.state.Devices {
		line := "  " + d.String()
		if i == m.cursor {
			line = selectedStyle.Render("> " + d.String())
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	// Buttons
	b.WriteString(m.renderPad())
	b.WriteString("\n\n")

	// Stick
	b.WriteString(statusStyle.Render(m.stick.String()))
	b.WriteString("\n\n")

	// Logs
	b.WriteString("Log:\n")
	logs := m.state.Logs
	if len(logs) > logLines {
		logs = logs[:logLines]
	}
	for _, line := range logs {
		if isFailure(line) {
			b.WriteString(errorStyle.Render("  " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(helpStyle.Render("[↑↓←→] drive  [space] rotate  [tab] select  [enter] connect  [x] disconnect  [l] scan  [q] quit"))

	return b.String()
}

func (m *driveModel) button(d carcontrol.Direction) string {
	label := d.Glyph() + " " + d.String()
	if m.state.Direction == d {
		return activeButtonStyle.Render(label)
	}
	return buttonStyle.Render(label)
}

func (m *driveModel) renderPad() string {
	blank := lipgloss.NewStyle().Width(14).Render("")
	top := lipgloss.JoinHorizontal(lipgloss.Top, blank, m.button(carcontrol.Forward))
	middle := lipgloss.JoinHorizontal(lipgloss.Top,
		m.button(carcontrol.Left),
		m.button(carcontrol.Rotate),
		m.button(carcontrol.Right),
	)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, blank, m.button(carcontrol.Backward))
	return lipgloss.JoinVertical(lipgloss.Left, top, middle, bottom)
}

func isFailure(line string) bool {
	return strings.Contains(line, "failed") ||
		strings.Contains(line, "denied") ||
		strings.HasPrefix(line, "Bluetooth error") ||
		strings.HasPrefix(line, "Not connected")
}

func runDrive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// slog records go into the drive's JSONL log so the alt screen stays clean.
	var logOut io.Writer = io.Discard
	eventLog, err := recorder.NewEventLog(cfg.LogDir)
	if err != nil {
		fmt.Printf("Warning: could not start logging: %v\n", err)
	} else {
		defer eventLog.Close()
		logOut = eventLog
	}
	logger := newJSONLogger(cfg, logOut)

	stateFile, err := recorder.NewDefaultStateFile()
	if err != nil {
		logger.Warn("state file unavailable", "error", err)
		stateFile = nil
	}

	session, closeSession, err := startSession(cfg, cfg.Transport, stateFile, logger)
	if err != nil {
		return err
	}
	defer closeSession()

	ctrl, link, err := openController(cfg, logger)
	if err != nil {
		return err
	}
	// Runs before closeSession so the disconnect is recorded.
	defer closeController(context.Background(), ctrl, link, logger)

	if eventLog != nil {
		ctrl.OnEvent(eventLog.Record)
	}
	if session != nil {
		ctrl.OnEvent(session.Record)
	} else if stateFile != nil {
		ctrl.OnEvent(rememberDevice(stateFile, link.Name(), logger))
	}

	var last *carcontrol.Device
	if stateFile != nil {
		if dev, ok := stateFile.LastDevice(link.Name()); ok {
			last = &dev
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	model := newDriveModel(ctx, ctrl, last)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, runErr := p.Run()

	if eventLog != nil {
		fmt.Printf("Log saved to: %s\n", eventLog.Path())
	}
	return runErr
}

// startSession opens the history database and starts a recorded session
// when recording is enabled. It returns a nil session otherwise.
func startSession(cfg *config.Config, transport string, stateFile *recorder.StateFile, logger *slog.Logger) (*recorder.Session, func(), error) {
	if !cfg.Record {
		return nil, func() {}, nil
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	session := recorder.NewSession(db, stateFile, logger)
	id, err := session.Start(transport, version)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("recording session", "session_id", id)

	return session, func() {
		if err := session.End(); err != nil {
			logger.Warn("end session", "error", err)
		}
		db.Close()
	}, nil
}

// rememberDevice saves each newly connected device as the last device.
func rememberDevice(sf *recorder.StateFile, transport string, logger *slog.Logger) func(carcontrol.Event) {
	return func(e carcontrol.Event) {
		c, ok := e.(carcontrol.Connected)
		if !ok {
			return
		}
		if err := sf.SetLastDevice(c.Device, transport); err != nil {
			logger.Warn("failed to save last device", "error", err)
		}
	}
}
