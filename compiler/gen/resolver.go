package gen

import "fmt"

// CollisionPolicy settles two operations with the same signature.
type CollisionPolicy int

// CollisionPolicy values.
const (
	// KeepFirst keeps the earlier operation and drops the later one.
	KeepFirst CollisionPolicy = iota
	// KeepLast replaces the earlier operation in place.
	KeepLast
	// Reject fails the entity.
	Reject
)

// String implements fmt.Stringer.
func (p CollisionPolicy) String() string {
	switch p {
	case KeepLast:
		return "keepLast"
	case Reject:
		return "reject"
	default:
		return "keepFirst"
	}
}

// ParseCollisionPolicy parses "keepFirst", "keepLast" or "reject".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch s {
	case "", "keepFirst":
		return KeepFirst, nil
	case "keepLast":
		return KeepLast, nil
	case "reject":
		return Reject, nil
	default:
		return KeepFirst, fmt.Errorf("unknown collision policy %q", s)
	}
}

// CollisionPolicies holds one policy per operation origin.
type CollisionPolicies struct {
	Derived  CollisionPolicy
	Declared CollisionPolicy
}

// For returns the policy for operations of the given origin.
func (p CollisionPolicies) For(o Origin) CollisionPolicy {
	if o == Declared {
		return p.Declared
	}
	return p.Derived
}

// insert adds op to the set, settling a signature collision by policy.
func (s *OperationSet) insert(op *Operation, policies CollisionPolicies) []Diagnostic {
	sig := op.Signature()
	i, dup := s.index[sig]
	if !dup {
		s.index[sig] = len(s.ops)
		s.ops = append(s.ops, op)
		return nil
	}
	prev := s.ops[i]
	switch policy := policies.For(op.Origin); policy {
	case Reject:
		err := NewSchemaError(op.Entity, op.Name, op.Source,
			fmt.Sprintf("operation %s duplicates %s (signature %s)", op.Describe(), prev.Describe(), sig), nil)
		return []Diagnostic{schemaDiagnostic(err)}
	case KeepLast:
		s.ops[i] = op
		return []Diagnostic{newDiagnostic(CodeDuplicateOperation, op.Entity, op.Source,
			"operation %s duplicates %s (signature %s); kept the last", op.Describe(), prev.Describe(), sig)}
	default:
		return []Diagnostic{newDiagnostic(CodeDuplicateOperation, op.Entity, op.Source,
			"operation %s duplicates %s (signature %s); kept the first", op.Describe(), prev.Describe(), sig)}
	}
}
