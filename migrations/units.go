// Package migrations holds the authored migration units for the CALL:ACT
// consultation knowledge base. Units are append-only: fixing an applied unit
// means authoring a new one.
package migrations

import (
	"github.com/callact/kbmigrate/change"
	"github.com/callact/kbmigrate/registry"
)

// Default returns the full migration catalog in version order.
func Default() *registry.Registry {
	reg := registry.New()

	reg.Register(registry.Unit{
		Version: "20240115093000",
		Name:    "core consultation schema",
		Changes: []change.SchemaChange{
			change.CreateExtension{Extension: "vector"},
			change.CreateEnumType{TypeName: "employee_status", Values: []string{"active", "inactive", "on_leave"}},
			change.CreateEnumType{TypeName: "consultation_status", Values: []string{"pending", "in_progress", "completed"}},
			change.CreateTable{
				Table: "employees",
				Definition: `
				"id" VARCHAR(50) PRIMARY KEY,
				"name" VARCHAR(100) NOT NULL,
				"email" VARCHAR(255) UNIQUE,
				"role" VARCHAR(50),
				"department" VARCHAR(100),
				"hire_date" DATE,
				"status" employee_status DEFAULT 'active',
				"consultations" INT DEFAULT 0,
				"fcr" INT DEFAULT 0,
				"avgTime" VARCHAR(10) DEFAULT '0:00',
				"rank" INT DEFAULT 0,
				"created_at" TIMESTAMP DEFAULT now(),
				"updated_at" TIMESTAMP DEFAULT now()`,
			},
			change.CreateTable{
				Table: "consultations",
				Definition: `
				"id" VARCHAR(50) PRIMARY KEY,
				"customer_id" VARCHAR(50),
				"agent_id" VARCHAR(50) REFERENCES "employees" ("id"),
				"status" consultation_status DEFAULT 'pending',
				"category" VARCHAR(50),
				"title" VARCHAR(255),
				"call_date" DATE,
				"call_time" TIME,
				"call_duration" VARCHAR(10),
				"fcr" BOOLEAN,
				"is_best_practice" BOOLEAN DEFAULT false,
				"quality_score" INT,
				"created_at" TIMESTAMP DEFAULT now(),
				"updated_at" TIMESTAMP DEFAULT now()`,
			},
			change.CreateIndex{
				Index:      "idx_consultations_agent_id",
				Table:      "consultations",
				Definition: `("agent_id")`,
			},
		},
	})

	reg.Register(registry.Unit{
		Version: "20240116101500",
		Name:    "consultation document vector store",
		Changes: []change.SchemaChange{
			change.CreateTable{
				Table: "consultation_documents",
				Definition: `
				"id" VARCHAR(50) PRIMARY KEY,
				"consultation_id" VARCHAR(50) REFERENCES "consultations" ("id"),
				"document_type" VARCHAR(50),
				"category" VARCHAR(50),
				"title" VARCHAR(255),
				"content" TEXT,
				"keywords" TEXT[],
				"embedding" VECTOR(1536),
				"metadata" JSONB,
				"usage_count" INT DEFAULT 0,
				"effectiveness_score" DECIMAL(3,2),
				"last_used" TIMESTAMP,
				"created_at" TIMESTAMP DEFAULT now()`,
			},
			change.CreateIndex{
				Index:      "idx_consultation_documents_embedding",
				Table:      "consultation_documents",
				Definition: `USING hnsw ("embedding" vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
			},
			change.CreateIndex{
				Index:      "idx_consultation_documents_category",
				Table:      "consultation_documents",
				Definition: `("category")`,
			},
		},
	})

	reg.Register(registry.Unit{
		Version: "20240214150000",
		Name:    "card product knowledge base",
		Changes: []change.SchemaChange{
			change.CreateEnumType{TypeName: "card_type_enum", Values: []string{"credit", "check", "prepaid"}},
			change.CreateEnumType{TypeName: "brand_type", Values: []string{"visa", "mastercard", "amex", "unionpay"}},
			change.CreateTable{
				Table: "service_guide_documents",
				Definition: `
				"id" VARCHAR(50) PRIMARY KEY,
				"document_type" VARCHAR(50),
				"category" VARCHAR(50),
				"title" VARCHAR(255),
				"content" TEXT,
				"keywords" TEXT[],
				"embedding" VECTOR(1536),
				"usage_count" INT DEFAULT 0,
				"last_used" TIMESTAMP,
				"created_at" TIMESTAMP DEFAULT now(),
				"updated_at" TIMESTAMP DEFAULT now()`,
			},
			change.CreateTable{
				Table: "card_products",
				Definition: `
				"id" VARCHAR(50) PRIMARY KEY,
				"name" VARCHAR(100) NOT NULL,
				"card_type" card_type_enum DEFAULT 'credit',
				"brand" brand_type,
				"annual_fee_domestic" INT,
				"annual_fee_global" INT,
				"performance_condition" TEXT,
				"main_benefits" TEXT,
				"status" VARCHAR(20) DEFAULT 'active',
				"created_at" TIMESTAMP DEFAULT now(),
				"updated_at" TIMESTAMP DEFAULT now()`,
			},
			change.CreateTable{
				Table: "notices",
				Definition: `
				"id" VARCHAR(50) PRIMARY KEY,
				"title" VARCHAR(255) NOT NULL,
				"content" TEXT,
				"category" VARCHAR(50) DEFAULT 'system',
				"priority" VARCHAR(20) DEFAULT 'normal',
				"is_pinned" BOOLEAN DEFAULT false,
				"start_date" DATE,
				"end_date" DATE,
				"status" VARCHAR(20) DEFAULT 'active',
				"created_by" VARCHAR(50),
				"keywords" TEXT[],
				"embedding" VECTOR(1536),
				"metadata" JSONB,
				"created_at" TIMESTAMP DEFAULT now(),
				"updated_at" TIMESTAMP DEFAULT now()`,
			},
			change.CreateIndex{
				Index:      "idx_service_guide_documents_embedding",
				Table:      "service_guide_documents",
				Definition: `USING hnsw ("embedding" vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
			},
			change.CreateIndex{
				Index:      "idx_notices_embedding",
				Table:      "notices",
				Definition: `USING hnsw ("embedding" vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
			},
		},
	})

	reg.Register(registry.Unit{
		Version: "20240302110000",
		Name:    "document metadata and brand extensions",
		Changes: []change.SchemaChange{
			change.AddColumn{Table: "service_guide_documents", Column: "metadata", Definition: "JSONB"},
			change.AddColumn{Table: "service_guide_documents", Column: "structured", Definition: "JSONB"},
			change.AddColumn{Table: "service_guide_documents", Column: "document_source", Definition: "VARCHAR(255)"},
			change.AddColumn{Table: "service_guide_documents", Column: "priority", Definition: "VARCHAR(20) DEFAULT 'normal'"},
			change.AddColumn{Table: "card_products", Column: "metadata", Definition: "JSONB"},
			change.AddColumn{Table: "card_products", Column: "structured", Definition: "JSONB"},
			change.AddEnumValue{TypeName: "brand_type", Value: "local"},
		},
	})

	reg.Register(registry.Unit{
		Version: "20240303094500",
		Name:    "widen document identifiers",
		Changes: []change.SchemaChange{
			change.DropConstraint{Table: "service_guide_documents", Constraint: "service_guide_documents_pkey"},
			change.AlterColumnType{Table: "service_guide_documents", Column: "id", NewType: "VARCHAR(100)"},
			change.AddConstraint{
				Table:      "service_guide_documents",
				Constraint: "service_guide_documents_pkey",
				Definition: `PRIMARY KEY ("id")`,
			},
		},
	})

	reg.Register(registry.Unit{
		Version: "20240310132000",
		Name:    "keyword dictionary",
		Changes: []change.SchemaChange{
			change.CreateTable{
				Table: "keyword_dictionary",
				Definition: `
				"id" SERIAL PRIMARY KEY,
				"keyword" VARCHAR(100) NOT NULL,
				"category" VARCHAR(50) NOT NULL,
				"priority" INT DEFAULT 5,
				"urgency" VARCHAR(20) DEFAULT 'medium',
				"context_hints" TEXT[],
				"weight" DECIMAL(4,2) DEFAULT 1.0,
				"synonyms" TEXT[],
				"variations" TEXT[],
				"compound_patterns" JSONB,
				"ambiguity_rules" JSONB,
				"created_at" TIMESTAMP DEFAULT now(),
				"updated_at" TIMESTAMP DEFAULT now(),
				CONSTRAINT "keyword_dictionary_keyword_category_key" UNIQUE ("keyword", "category")`,
			},
			change.CreateTable{
				Table: "keyword_synonyms",
				Definition: `
				"id" SERIAL PRIMARY KEY,
				"synonym" VARCHAR(100) NOT NULL,
				"canonical_keyword" VARCHAR(100) NOT NULL,
				"category" VARCHAR(50) NOT NULL,
				"created_at" TIMESTAMP DEFAULT now(),
				CONSTRAINT "keyword_synonyms_key" UNIQUE ("synonym", "canonical_keyword", "category")`,
			},
			change.CreateIndex{
				Index:      "idx_keyword_dictionary_keyword",
				Table:      "keyword_dictionary",
				Definition: `("keyword")`,
			},
		},
	})

	return reg
}
