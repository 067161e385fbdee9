package store

// DefaultHistoryLimit bounds the undo and redo stacks.
const DefaultHistoryLimit = 20

// stack is a bounded LIFO that drops its oldest element on overflow.
type stack[T any] struct {
	limit int
	items []T
}

func newStack[T any](limit int) *stack[T] {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &stack[T]{limit: limit}
}

func (s *stack[T]) push(v T) {
	s.items = append(s.items, v)
	if over := len(s.items) - s.limit; over > 0 {
		clear(s.items[:over])
		s.items = s.items[over:]
	}
}

func (s *stack[T]) pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	last := len(s.items) - 1
	v := s.items[last]
	s.items[last] = zero
	s.items = s.items[:last]
	return v, true
}

func (s *stack[T]) reset() {
	s.items = nil
}

func (s *stack[T]) len() int {
	return len(s.items)
}
