package config

const (
	defaultSandboxImage    = "python:3.12-slim"
	defaultSandboxTimeoutS = 120
	defaultMemoryLimitMB   = 1024
	defaultCPULimit        = 1.0
	defaultPidsLimit       = 256
	defaultOutputLimitKB   = 64
	defaultAcquireTimeoutS = 60
	defaultClonesPerMinute = 30
	defaultMaxConcurrency  = 4
	defaultMaxScore        = 100.0
	defaultRetrievalK      = 5
)

// Default returns the built-in grading configuration. A config file loaded
// with Load overlays these values; an empty rubric or threshold list in the
// file keeps the defaults below.
func Default() *Config {
	return &Config{
		Sandbox: Sandbox{
			Image:          defaultSandboxImage,
			TimeoutSeconds: defaultSandboxTimeoutS,
			MemoryLimitMB:  defaultMemoryLimitMB,
			CPULimit:       defaultCPULimit,
			PidsLimit:      defaultPidsLimit,
			OutputLimitKB:  defaultOutputLimitKB,
		},
		Acquisition: Acquisition{
			TimeoutSeconds:  defaultAcquireTimeoutS,
			ClonesPerMinute: defaultClonesPerMinute,
		},
		MaxConcurrency:  defaultMaxConcurrency,
		Results:         Results{Dir: "results"},
		Rubric:          defaultRubric(),
		GradeThresholds: defaultThresholds(),
	}
}

func defaultThresholds() []Threshold {
	return []Threshold{
		{Score: 90, Letter: "A"},
		{Score: 80, Letter: "B"},
		{Score: 70, Letter: "C"},
		{Score: 60, Letter: "D"},
		{Score: 0, Letter: "F"},
	}
}

func defaultRubric() []Criterion {
	return []Criterion{
		{
			ID:             "functional",
			Name:           "Functional pipeline tests",
			Kind:           KindFunctional,
			Weight:         40,
			MaxScore:       100,
			TimeoutSeconds: 120,
			Command:        "python -m pytest -q",
		},
		{
			ID:             "retrieval",
			Name:           "Retrieval quality",
			Kind:           KindRetrieval,
			Weight:         30,
			MaxScore:       100,
			TimeoutSeconds: 120,
			Command:        "python {main_file} --probe /fixtures/queries.json --out /out/rankings.json",
			Retrieval: &Retrieval{
				Metric:    MetricKeywordOverlap,
				K:         defaultRetrievalK,
				Documents: defaultDocuments(),
				Queries:   defaultQueries(),
			},
		},
		{
			ID:       "static",
			Name:     "Implementation completeness",
			Kind:     KindStatic,
			Weight:   30,
			MaxScore: 100,
			Checks:   defaultChecks(),
		},
	}
}

// The default fixture set mirrors the sample corpus the course hands out:
// short factual documents with queries whose answers must surface specific
// terms.
func defaultDocuments() []Document {
	return []Document{
		{
			ID:   "doc_ml",
			Name: "machine_learning.txt",
			Content: "Machine learning is a subset of artificial intelligence that enables " +
				"systems to learn from data. Common approaches include supervised learning, " +
				"where models train on labeled examples, and unsupervised learning, where " +
				"models find structure in unlabeled data.",
		},
		{
			ID:   "doc_nn",
			Name: "neural_networks.txt",
			Content: "Neural networks are computing systems inspired by biological brains. " +
				"They consist of layers of interconnected nodes that transform inputs " +
				"through weighted connections, and they learn by adjusting those weights " +
				"during training.",
		},
		{
			ID:   "doc_rag",
			Name: "retrieval_augmented_generation.txt",
			Content: "Retrieval-augmented generation combines a document retriever with a " +
				"language model. Relevant text chunks are embedded, stored in a vector " +
				"database, retrieved by similarity to the query, and passed to the model " +
				"as grounding context.",
		},
	}
}

func defaultQueries() []Query {
	return []Query{
		{
			ID:               "q_ml",
			Text:             "What is machine learning?",
			RelevantDocs:     []string{"doc_ml"},
			ExpectedKeywords: []string{"machine learning", "data", "artificial intelligence"},
		},
		{
			ID:               "q_nn",
			Text:             "How do neural networks work?",
			RelevantDocs:     []string{"doc_nn"},
			ExpectedKeywords: []string{"neural", "layers", "weights"},
		},
		{
			ID:               "q_learning",
			Text:             "Explain supervised and unsupervised learning",
			RelevantDocs:     []string{"doc_ml"},
			ExpectedKeywords: []string{"supervised", "unsupervised", "labeled"},
		},
	}
}

func defaultChecks() []StaticCheck {
	return []StaticCheck{
		{
			Name:  "readme present",
			Kind:  CheckFileExists,
			Paths: []string{"README.md", "README.rst", "README.txt", "README"},
		},
		{
			Name:  "env template present",
			Kind:  CheckFileExists,
			Paths: []string{".env.example", ".env.template", "env.example"},
		},
		{
			Name:     "chunking logic",
			Kind:     CheckSourceContains,
			Patterns: []string{"chunk", "split_text", "text_splitter"},
		},
		{
			Name:     "embedding call",
			Kind:     CheckSourceContains,
			Patterns: []string{"embedding", "embed_content", "encode("},
		},
		{
			Name:     "vector store usage",
			Kind:     CheckSourceContains,
			Patterns: []string{"chroma", "faiss", "pinecone", "qdrant", "vector"},
		},
		{
			Name:     "llm integration",
			Kind:     CheckSourceContains,
			Patterns: []string{"gemini", "openai", "anthropic", "generate_content", "chat.completions"},
		},
		{
			Name:     "configurable chunk size",
			Kind:     CheckSourceRegex,
			Patterns: []string{`(?i)chunk[_-]?(size|length)\s*[=:]`},
		},
	}
}
