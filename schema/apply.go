package schema

import "fmt"

// Apply plays a diff against a snapshot and returns the resulting
// snapshot, mirroring what executing the rendered DDL would do to the
// catalog. It enforces the same ordering constraints the engine would:
// an operation referencing a missing table or column fails, as does
// dropping a column that a primary key or surviving index still covers.
func Apply(snap Snapshot, d Diff) (Snapshot, error) {
	out := snap.Clone()
	for _, op := range d.Operations {
		if err := applyOne(out, op); err != nil {
			return nil, fmt.Errorf("applying %s: %w", op, err)
		}
	}
	return out, nil
}

func applyOne(s Snapshot, op Operation) error {
	switch op.Kind {
	case OpCreateTable:
		if _, ok := s[op.Spec.Name]; ok {
			return fmt.Errorf("table %q already exists", op.Spec.Name)
		}
		spec := op.Spec.Clone()
		spec.Indexes = nil // indexes arrive as separate operations
		s[op.Spec.Name] = spec
		return nil

	case OpDropTable:
		if _, ok := s[op.Table]; !ok {
			return fmt.Errorf("table %q does not exist", op.Table)
		}
		delete(s, op.Table)
		return nil

	case OpAddColumn:
		t, err := lookupTable(s, op.Table)
		if err != nil {
			return err
		}
		if t.HasColumn(op.Column.Name) {
			return fmt.Errorf("column %q already exists", op.Column.Name)
		}
		t.Columns = append(t.Columns, cloneColumn(*op.Column))
		return nil

	case OpDropColumn:
		t, err := lookupTable(s, op.Table)
		if err != nil {
			return err
		}
		if !t.HasColumn(op.Name) {
			return fmt.Errorf("column %q does not exist", op.Name)
		}
		for _, k := range t.PrimaryKey {
			if k == op.Name {
				return fmt.Errorf("column %q is part of the primary key", op.Name)
			}
		}
		for _, ix := range t.Indexes {
			for _, c := range ix.Columns {
				if c == op.Name {
					return fmt.Errorf("column %q is covered by index %q", op.Name, ix.EffectiveName(t.Name))
				}
			}
		}
		cols := t.Columns[:0]
		for _, c := range t.Columns {
			if c.Name != op.Name {
				cols = append(cols, c)
			}
		}
		t.Columns = cols
		return nil

	case OpAlterColumn:
		t, err := lookupTable(s, op.Table)
		if err != nil {
			return err
		}
		c := t.Column(op.Old.Name)
		if c == nil {
			return fmt.Errorf("column %q does not exist", op.Old.Name)
		}
		pk := c.PrimaryKey
		*c = cloneColumn(*op.New)
		c.PrimaryKey = pk // key membership is not alterable
		return nil

	case OpCreateIndex:
		t, err := lookupTable(s, op.Table)
		if err != nil {
			return err
		}
		for _, col := range op.Index.Columns {
			if !t.HasColumn(col) {
				return fmt.Errorf("index column %q does not exist", col)
			}
		}
		if hasMatchingIndex(t.Indexes, *op.Index) {
			return fmt.Errorf("equivalent index already exists on %q", op.Table)
		}
		t.Indexes = append(t.Indexes, Index{
			Name:    op.Index.Name,
			Columns: append([]string(nil), op.Index.Columns...),
			Unique:  op.Index.Unique,
		})
		return nil

	case OpDropIndex:
		t, err := lookupTable(s, op.Table)
		if err != nil {
			return err
		}
		for i, ix := range t.Indexes {
			if ix.EffectiveName(t.Name) == op.Name {
				t.Indexes = append(t.Indexes[:i], t.Indexes[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("index %q does not exist", op.Name)

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func lookupTable(s Snapshot, name string) (*Table, error) {
	t, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return t, nil
}
