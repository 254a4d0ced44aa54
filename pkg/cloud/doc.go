// Package cloud defines the interfaces to the external collaborators of the
// orchestration core: the build executor that performs the actual provisioning
// work and the stack query used to inspect and tear down provisioned stacks.
// AWS-backed implementations live in the aws subpackage; tests use in-memory
// fakes.
package cloud
