package pgload

import "context"

// Approver handles operator confirmation before destructive steps,
// currently clearing the staging table.
//
// Implementations:
//   - ForcedApprover: Shows a countdown and automatically approves
//   - InteractiveApprover: Prompts the operator to type the table name
//   - NonInteractiveApprover: Refuses, asking for --force
type Approver interface {
	// RequestApproval asks for confirmation before truncating target.
	//
	// Returns:
	//   - bool: true if approved, false if denied
	//   - error: Any error that occurred during the approval process
	RequestApproval(ctx context.Context, target string) (bool, error)
}
