// Package judgingengine implements the Judging Engine inside the
// competition-core context.
//
// The module owns judge allocation (section exclusivity, panel capacity,
// coordinator promotion/demotion), score capture against fixed category
// sheets, coordinator arbitration, per-category ranking with competition
// ranking semantics, point roll-ups across administrative geographies, and
// the publish/unpublish state machine that promotes winning projects to the
// next competition level. Business rules live in application/domain layers;
// infrastructure stays behind ports and adapters.
package judgingengine
