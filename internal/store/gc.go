package store

import (
	"errors"
	"log"
)

// CollectTags deletes candidate tags that no longer have any item relations.
// It runs once per item delete, after the cascading delete has committed, and
// is scoped to exactly the tag ids that item referenced; it never scans the
// whole tag table. Idempotent: an already-reaped candidate counts zero
// relations and has no tag row left to delete.
func (s *Store) CollectTags(candidateIDs []string) error {
	var errs []error
	for _, id := range candidateIDs {
		var refs int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM inspo_tags WHERE tag_id = ?`, id).Scan(&refs); err != nil {
			log.Printf("tag gc: count %s: %v", id, err)
			errs = append(errs, err)
			continue
		}
		if refs > 0 {
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM tags WHERE id = ?`, id); err != nil {
			log.Printf("tag gc: delete %s: %v", id, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
