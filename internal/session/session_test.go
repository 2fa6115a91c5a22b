package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelDefaultsEmpty(t *testing.T) {
	s := NewMemory()
	assert.Equal(t, "", s.Model("U123"))
}

func TestSetModelPerChat(t *testing.T) {
	s := NewMemory()
	s.SetModel("U123", "gpt-4o")
	s.SetModel("Cgroup", "llama3-8b-8192")

	assert.Equal(t, "gpt-4o", s.Model("U123"))
	assert.Equal(t, "llama3-8b-8192", s.Model("Cgroup"))
	assert.Equal(t, "", s.Model("U999"))
}

func TestUpdateTranslationKeepsUntouchedFields(t *testing.T) {
	s := NewMemory()

	s.UpdateTranslation("U123", func(tr *Translation) {
		tr.Enabled = true
		tr.Method = "gpt"
		tr.Source = "en"
		tr.Target = "ja"
	})

	// A re-run of the wizard that only picks a new source keeps the
	// previously chosen target.
	s.UpdateTranslation("U123", func(tr *Translation) {
		tr.Source = "ko"
	})

	got := s.Translation("U123")
	assert.Equal(t, Translation{Enabled: true, Method: "gpt", Source: "ko", Target: "ja"}, got)
}

func TestTranslationZeroValue(t *testing.T) {
	s := NewMemory()
	assert.Equal(t, Translation{}, s.Translation("U123"))
}

func TestConcurrentAccess(t *testing.T) {
	s := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chatID := fmt.Sprintf("U%d", i%4)
			s.SetModel(chatID, "gpt-4o")
			s.UpdateTranslation(chatID, func(tr *Translation) { tr.Enabled = true })
			_ = s.Model(chatID)
			_ = s.Translation(chatID)
		}(i)
	}
	wg.Wait()

	assert.True(t, s.Translation("U0").Enabled)
}
