// Package metadata captures introspection metadata about the entities a
// schema was built from: their fields, relationships, enums and the
// operations the schema exposes for them.
//
// # Overview
//
// Metadata is collected once per build from the finalized registry and is
// served through the `_metadata` query as well as the `gqlmeta metadata`
// command. Admin tooling uses it to render forms without re-deriving the
// schema rules: a field reported as writable is exactly a field of the
// entity's InsertInput.
//
// # Example Usage
//
//	meta := metadata.Collect(reg.Entities(), operations)
//	data, _ := json.Marshal(meta)
//
//	idx, err := metadata.Load(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	task, err := idx.Entity("Task")
//	refs := idx.ReferencedBy("User")
//
// # Example JSON Output
//
//	{
//	  "version": "1.0",
//	  "generated": "2026-10-16T10:30:00Z",
//	  "entities": [
//	    {
//	      "name": "Task",
//	      "plural": "Tasks",
//	      "primaryKey": "taskId",
//	      "operations": ["task", "tasks", "tasks_aggregate", "createTask"],
//	      "fields": [
//	        {"name": "taskId", "type": "ID", "filterable": true},
//	        {"name": "title", "type": "String", "filterable": true, "writable": true},
//	        {
//	          "name": "user",
//	          "type": "User",
//	          "nullable": true,
//	          "relationship": {"kind": "MANY_TO_ONE", "target": "User", "idField": "userId"}
//	        }
//	      ]
//	    }
//	  ],
//	  "enums": [{"name": "Status", "values": ["OPEN", "DONE"]}]
//	}
//
// # Dependency Graph
//
// Relationships form a directed graph between entities. Index.Dependencies
// walks it forwards (what an entity references) or in reverse (what
// references an entity), optionally limited in depth or to some
// relationship kinds.
package metadata
