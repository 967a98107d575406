package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enter(t *testing.T, m replModel, input string) (replModel, tea.Cmd) {
	t.Helper()
	m.textInput.SetValue(input)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	rm, ok := model.(replModel)
	require.True(t, ok, "unexpected model type %T", model)
	return rm, cmd
}

func TestUpdateQuitCommandReturnsQuit(t *testing.T) {
	rm, cmd := enter(t, newREPLModel(), ":quit")

	assert.True(t, rm.quitting)
	assert.Empty(t, rm.textInput.Value())
	require.NotNil(t, cmd)
	if msg := cmd(); msg != nil {
		assert.IsType(t, tea.QuitMsg{}, msg)
	}
}

func TestUpdateNonQuitCommandDoesNotReturnCmd(t *testing.T) {
	rm, cmd := enter(t, newREPLModel(), ":help")

	assert.Nil(t, cmd)
	assert.False(t, rm.quitting)
	assert.True(t, rm.showHelp)
	assert.Empty(t, rm.textInput.Value())
}

func TestEvaluateKeepsGlobalsBetweenInputs(t *testing.T) {
	m := newREPLModel()

	output, isErr := m.evaluate("var score = 40")
	require.False(t, isErr, output)
	output, isErr = m.evaluate("score + 2")
	require.False(t, isErr, output)
	assert.Equal(t, "42", output)
	assert.Equal(t, []string{"score"}, m.globalNames())

	output, isErr = m.evaluate("_ * 2")
	require.False(t, isErr, output)
	assert.Equal(t, "84", output)

	output, isErr = m.evaluate("missing")
	assert.True(t, isErr)
	assert.Contains(t, output, "ReferenceError")
}

func TestEmitCommandShowsProgram(t *testing.T) {
	m := newREPLModel()
	_, isErr := m.evaluate("var point = {x: 1}")
	require.False(t, isErr)

	rm, _ := enter(t, m, ":emit point")
	require.Len(t, rm.history, 1)
	assert.False(t, rm.history[0].isErr)
	assert.Equal(t, "self.point = {x: 1};", rm.history[0].output)

	rm, _ = enter(t, rm, ":emit")
	assert.True(t, rm.history[1].isErr)
}

func TestResetStartsFreshRealm(t *testing.T) {
	m := newREPLModel()
	_, isErr := m.evaluate("var kept = 1")
	require.False(t, isErr)

	rm, _ := enter(t, m, ":reset")
	assert.Empty(t, rm.globalNames())
}

func TestAutocompleteUsesGlobals(t *testing.T) {
	m := newREPLModel()
	_, isErr := m.evaluate("var uniqueName = 1")
	require.False(t, isErr)

	m.textInput.SetValue("1 + uniq")
	m = m.handleAutocomplete()
	assert.Equal(t, "1 + uniqueName", m.textInput.Value())
}

func TestAutocompleteOffersOnlyLexerKeywords(t *testing.T) {
	m := newREPLModel()

	m.textInput.SetValue("x instanceo")
	m = m.handleAutocomplete()
	assert.Equal(t, "x instanceof", m.textInput.Value())

	m.textInput.SetValue("cla")
	m = m.handleAutocomplete()
	assert.Equal(t, "cla", m.textInput.Value())
	assert.Empty(t, m.history)
}
