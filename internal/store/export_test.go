package store

// ExecForTest runs raw SQL against the store's database.
func ExecForTest(s *Store, query string) error {
	_, err := s.db.Exec(query)
	return err
}
