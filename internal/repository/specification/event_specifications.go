package specification

import "gorm.io/gorm"

// BySource filters event embeddings by the listing file they were loaded from
type BySource struct {
	Source string
}

func (s BySource) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source = ?", s.Source)
}

// ByFingerprints filters event embeddings by content fingerprint
type ByFingerprints struct {
	Fingerprints []string
}

func (s ByFingerprints) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("fingerprint IN ?", s.Fingerprints)
}
