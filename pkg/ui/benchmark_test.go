package ui

import (
	"fmt"
	"testing"
)

func BenchmarkGridView(b *testing.B) {
	for _, size := range []int{1_000, 100_000} {
		b.Run(fmt.Sprintf("rows=%d", size), func(b *testing.B) {
			m, _ := newTestModel(b, size)
			_ = m.View()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = m.View()
			}
		})
	}
}

func BenchmarkScrollAndFetch(b *testing.B) {
	m, _ := newTestModel(b, 100_000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := "pgdown"
		if (i/100)%2 == 1 {
			key = "pgup"
		}
		updated, cmd := m.Update(keyMsg(key))
		m = updated.(Model)
		if cmd != nil {
			m = runWindow(b, m, cmd)
		}
	}
}
