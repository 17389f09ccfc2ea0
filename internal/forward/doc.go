// Package forward delivers speech segments to a downstream HTTP consumer.
package forward
