package agent

import (
	"testing"

	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesAndGeneral() []domain.AgentConfig {
	return []domain.AgentConfig{
		{ID: "s", Name: "Sales", Keywords: []string{"precio"}},
		{ID: "g", Name: "General", Keywords: []string{"*"}, IsDefault: true},
	}
}

func TestSelect_KeywordMatch(t *testing.T) {
	a, ok := Select("cual es el precio?", salesAndGeneral())
	require.True(t, ok)
	assert.Equal(t, "Sales", a.Name)
}

func TestSelect_DefaultFallback(t *testing.T) {
	a, ok := Select("hola", salesAndGeneral())
	require.True(t, ok)
	assert.Equal(t, "General", a.Name)
}

func TestSelect_CaseInsensitive(t *testing.T) {
	agents := []domain.AgentConfig{
		{ID: "g", Name: "General", IsDefault: true},
		{ID: "s", Name: "Soporte", Keywords: []string{"ErRoR"}},
	}
	a, _ := Select("Tengo un ERROR en la app", agents)
	assert.Equal(t, "Soporte", a.Name)
}

func TestSelect_FirstMatchWins(t *testing.T) {
	agents := []domain.AgentConfig{
		{ID: "1", Name: "First", Keywords: []string{"pago"}},
		{ID: "2", Name: "Second", Keywords: []string{"pago", "factura"}},
	}
	a, _ := Select("pago de factura", agents)
	assert.Equal(t, "First", a.Name)
}

func TestSelect_DefaultRegardlessOfOrder(t *testing.T) {
	agents := []domain.AgentConfig{
		{ID: "1", Name: "A", Keywords: []string{"x"}},
		{ID: "2", Name: "B", Keywords: []string{"y"}},
		{ID: "3", Name: "C", IsDefault: true},
	}
	a, _ := Select("nada", agents)
	assert.Equal(t, "C", a.Name)
}

func TestSelect_FirstAgentWhenNoDefault(t *testing.T) {
	agents := []domain.AgentConfig{
		{ID: "1", Name: "A", Keywords: []string{"x"}},
		{ID: "2", Name: "B", Keywords: []string{"y"}},
	}
	a, ok := Select("nada", agents)
	require.True(t, ok)
	assert.Equal(t, "A", a.Name)
}

func TestSelect_WildcardAndEmptyNeverMatch(t *testing.T) {
	agents := []domain.AgentConfig{
		{ID: "1", Name: "Wild", Keywords: []string{"*", ""}},
		{ID: "2", Name: "Default", IsDefault: true},
	}
	a, _ := Select("* cualquier cosa", agents)
	assert.Equal(t, "Default", a.Name)
}

func TestSelect_KeywordWhitespaceIsSignificant(t *testing.T) {
	agents := []domain.AgentConfig{
		{ID: "1", Name: "Ventas", Keywords: []string{" precio "}},
		{ID: "2", Name: "General", IsDefault: true},
	}

	a, _ := Select("precio?", agents)
	assert.Equal(t, "General", a.Name)

	a, _ = Select("el precio hoy", agents)
	assert.Equal(t, "Ventas", a.Name)

	a, _ = Select("hola   adios", []domain.AgentConfig{
		{ID: "1", Name: "Spaces", Keywords: []string{"   "}},
		{ID: "2", Name: "General", IsDefault: true},
	})
	assert.Equal(t, "Spaces", a.Name)
}

func TestSelect_Empty(t *testing.T) {
	_, ok := Select("hola", nil)
	assert.False(t, ok)
}

func TestSelect_AlwaysReturnsMember(t *testing.T) {
	agents := salesAndGeneral()
	for _, text := range []string{"", "precio", "PRECIO", "hola", "*", "precios altos"} {
		a, ok := Select(text, agents)
		require.True(t, ok)
		assert.Contains(t, agents, a, "input %q", text)
	}
}
