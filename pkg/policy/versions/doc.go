// Package versions implements the policy version lifecycle.
//
// A version moves draft -> pending_approval -> approved -> active, with
// rejected and archived as terminal states. At most one version per policy
// is active at any time; promotion atomically archives the predecessor.
// Manager performs the input validation and orchestration around the
// store's compare-and-swap transition primitives.
package versions
