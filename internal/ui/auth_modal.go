package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/state"
)

// Auth input indexes.
const (
	authName = iota
	authEmail
	authPassword
)

// --- Login/Signup Modal ---

type authDoneMsg struct {
	user   *api.User
	err    error
	signup bool
}

// initAuthInputs initializes the text inputs for the login/signup modal.
func (m *Model) initAuthInputs() {
	nameInput := textinput.New()
	nameInput.Placeholder = "2-50 characters"
	nameInput.CharLimit = 50
	nameInput.Width = 30

	emailInput := textinput.New()
	emailInput.Placeholder = "you@example.com"
	emailInput.CharLimit = 100
	emailInput.Width = 30

	passwordInput := textinput.New()
	passwordInput.Placeholder = "8+ characters"
	passwordInput.CharLimit = 100
	passwordInput.Width = 30
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'

	m.authInputs[authName] = nameInput
	m.authInputs[authEmail] = emailInput
	m.authInputs[authPassword] = passwordInput
}

// openAuthModal opens the login modal, or the signup modal when signup is set.
func (m *Model) openAuthModal(signup bool) {
	if signup {
		m.uiStore.OpenSignupModal()
	} else {
		m.uiStore.OpenLoginModal()
	}
	m.authErr = ""
	m.authPending = false
	m.authInputs[authPassword].SetValue("")
	m.focusAuthInput(firstAuthField(signup))
}

func firstAuthField(signup bool) int {
	if signup {
		return authName
	}
	return authEmail
}

func (m *Model) focusAuthInput(idx int) {
	for i := range m.authInputs {
		m.authInputs[i].Blur()
	}
	m.authFocusIdx = idx
	m.authInputs[idx].Focus()
}

// handleAuthKey handles keyboard input for the login/signup modal.
func (m Model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	signup := m.uiSnap.ShowSignupModal

	switch {
	case key.Matches(msg, m.keys.Escape):
		m.uiStore.CloseAllModals()
		m.authErr = ""
		m.pull()
		return m, nil

	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case msg.String() == "ctrl+n":
		// Switch between login and signup.
		m.openAuthModal(!signup)
		m.pull()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		if m.authPending {
			return m, nil
		}
		m.authPending = true
		m.authErr = ""
		return m, authCmd(m.ctx, m, signup)

	case key.Matches(msg, m.keys.Tab), msg.Type == tea.KeyDown:
		m.focusAuthInput(m.nextAuthField(1, signup))
		return m, nil

	case key.Matches(msg, m.keys.ShiftTab), msg.Type == tea.KeyUp:
		m.focusAuthInput(m.nextAuthField(-1, signup))
		return m, nil
	}

	// Letters go to the focused input, so j/k do not move focus here.
	var cmd tea.Cmd
	m.authInputs[m.authFocusIdx], cmd = m.authInputs[m.authFocusIdx].Update(msg)
	return m, cmd
}

// nextAuthField moves focus by step, skipping the name field when logging in.
func (m Model) nextAuthField(step int, signup bool) int {
	n := len(m.authInputs)
	idx := m.authFocusIdx
	for {
		idx = (idx + step + n) % n
		if signup || idx != authName {
			return idx
		}
	}
}

// authCmd submits the modal. The inputs are read before the command runs.
func authCmd(ctx context.Context, m Model, signup bool) tea.Cmd {
	session := m.session
	name := strings.TrimSpace(m.authInputs[authName].Value())
	email := strings.TrimSpace(m.authInputs[authEmail].Value())
	password := m.authInputs[authPassword].Value()

	return func() tea.Msg {
		if session == nil {
			return authDoneMsg{err: apperr.Rejected("accounts are not available"), signup: signup}
		}
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()

		var (
			user *api.User
			err  error
		)
		if signup {
			user, err = session.Register(ctx, api.Registration{Name: name, Email: email, Password: password})
		} else {
			user, err = session.Login(ctx, api.Credentials{Email: email, Password: password})
		}
		return authDoneMsg{user: user, err: err, signup: signup}
	}
}

func (m *Model) handleAuthDone(msg authDoneMsg) {
	m.authPending = false
	if msg.err != nil {
		m.authErr = apperr.Message(msg.err)
		m.logger.Info("authentication failed", "signup", msg.signup, "error", msg.err)
		return
	}

	m.authErr = ""
	m.authInputs[authPassword].SetValue("")
	m.uiStore.CloseAllModals()
	name := "back"
	if msg.user != nil && msg.user.Name != "" {
		name = msg.user.Name
	}
	if msg.signup {
		m.uiStore.Notify(state.NotifySuccess, "Welcome to DropIt, "+name)
	} else {
		m.uiStore.Notify(state.NotifySuccess, "Welcome "+name)
	}
	m.pull()
}

// renderAuthModal renders the login/signup modal.
func (m Model) renderAuthModal() string {
	styles := m.theme.Styles()
	signup := m.uiSnap.ShowSignupModal

	var b strings.Builder

	// Title
	titleText := "Log in"
	if signup {
		titleText = "Create account"
	}
	b.WriteString(styles.Text.Bold(true).Render(titleText))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 40)))
	b.WriteString("\n\n")

	labels := [...]string{"Name:     ", "Email:    ", "Password: "}
	for i, label := range labels {
		if i == authName && !signup {
			continue
		}
		if m.authFocusIdx == i {
			label = styles.AccentText.Render(label)
		} else {
			label = styles.MutedText.Render(label)
		}
		b.WriteString(label)
		b.WriteString(m.authInputs[i].View())
		b.WriteString("\n\n")
	}

	switch {
	case m.authPending:
		b.WriteString(styles.WarningText.Render("Please wait..."))
		b.WriteString("\n\n")
	case m.authErr != "":
		b.WriteString(styles.DangerText.Render(m.authErr))
		b.WriteString("\n\n")
	}

	// Buttons hint
	other := "Sign up"
	if signup {
		other = "Log in"
	}
	b.WriteString(styles.FaintText.Render("Enter: Submit  •  Esc: Cancel  •  Ctrl+N: " + other))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(ModalWidth)

	// Center the modal
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
