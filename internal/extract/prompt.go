package extract

// SystemPrompt instructs the model to quote the key sentences of a chunk
// verbatim as a list literal.
const SystemPrompt = `Provide the important points in the text such that it can be used by a program to highlight the essential points in the research paper. Do not mark general points, focus on key points of the text. Do not change the capitalization of the text, only take the exact sentences and represent it in the form ["sentence_1", "sentence_2",..., "sentence_n"]`
