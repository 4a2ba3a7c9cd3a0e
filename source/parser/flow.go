package parser

import (
	"github.com/tenorlang/tenor/source/ast"
	"github.com/tenorlang/tenor/source/err"
	"github.com/tenorlang/tenor/source/token"
)

func (p *Parser) parseFlow(line int) (ast.RawConstruct, *err.Error) {
	p.advance()
	id, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	snapshot := ""
	entry := ""
	entryLine := line
	steps := map[string]ast.RawStep{}
	for p.peek().Type != token.RBRACE {
		fieldLine := p.curLine()
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "snapshot":
			if snapshot, e = p.takeWord(); e != nil {
				return nil, e
			}
		case "entry":
			entryLine = fieldLine
			if entry, e = p.takeWord(); e != nil {
				return nil, e
			}
		case "steps":
			if steps, e = p.parseSteps(); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/field/unknown", "Flow", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return ast.Flow{Id: id, Snapshot: snapshot, Entry: entry, EntryLine: entryLine,
		Steps: steps, Prov: p.prov(line)}, nil
}

func (p *Parser) parseSteps() (map[string]ast.RawStep, *err.Error) {
	steps := map[string]ast.RawStep{}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	for p.peek().Type != token.RBRACE {
		stepLine := p.curLine()
		stepId, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		stepKind, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		step, e := p.parseStepBody(stepKind, stepLine)
		if e != nil {
			return nil, e
		}
		steps[stepId] = step
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return steps, nil
}

func (p *Parser) parseStepBody(kind string, stepLine int) (ast.RawStep, *err.Error) {
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	var step ast.RawStep
	switch kind {
	case "OperationStep":
		op := ""
		persona := ""
		outcomes := map[string]ast.RawStepTarget{}
		var onFailure ast.RawFailureHandler
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "op":
				if op, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "persona":
				if persona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "outcomes":
				if outcomes, e = p.parseOutcomes(); e != nil {
					return nil, e
				}
			case "on_failure":
				if onFailure, e = p.parseFailureHandler(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "OperationStep", key)
			}
		}
		step = ast.OperationStep{Op: op, Persona: persona, Outcomes: outcomes,
			OnFailure: onFailure, Line: stepLine}
	case "BranchStep":
		var condition ast.RawExpr
		persona := ""
		var ifTrue, ifFalse ast.RawStepTarget
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "condition":
				if condition, e = p.parseExpr(); e != nil {
					return nil, e
				}
			case "persona":
				if persona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "if_true":
				if ifTrue, e = p.parseStepTarget(); e != nil {
					return nil, e
				}
			case "if_false":
				if ifFalse, e = p.parseStepTarget(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "BranchStep", key)
			}
		}
		if condition == nil {
			return nil, p.throw("parse/step/missing", "BranchStep", "condition")
		}
		if ifTrue == nil {
			return nil, p.throw("parse/step/missing", "BranchStep", "if_true")
		}
		if ifFalse == nil {
			return nil, p.throw("parse/step/missing", "BranchStep", "if_false")
		}
		step = ast.BranchStep{Condition: condition, Persona: persona, IfTrue: ifTrue,
			IfFalse: ifFalse, Line: stepLine}
	case "HandoffStep":
		fromPersona := ""
		toPersona := ""
		next := ""
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "from_persona":
				if fromPersona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "to_persona":
				if toPersona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "next":
				if next, e = p.takeWord(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "HandoffStep", key)
			}
		}
		step = ast.HandoffStep{FromPersona: fromPersona, ToPersona: toPersona, Next: next,
			Line: stepLine}
	case "SubFlowStep":
		flow := ""
		flowLine := stepLine
		persona := ""
		var onSuccess ast.RawStepTarget
		var onFailure ast.RawFailureHandler
		for p.peek().Type != token.RBRACE {
			fieldLine := p.curLine()
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "flow":
				flowLine = fieldLine
				if flow, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "persona":
				if persona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "on_success":
				if onSuccess, e = p.parseStepTarget(); e != nil {
					return nil, e
				}
			case "on_failure":
				if onFailure, e = p.parseFailureHandler(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "SubFlowStep", key)
			}
		}
		if onSuccess == nil {
			return nil, p.throw("parse/step/missing", "SubFlowStep", "on_success")
		}
		if onFailure == nil {
			return nil, p.throw("parse/step/missing", "SubFlowStep", "on_failure")
		}
		step = ast.SubFlowStep{Flow: flow, FlowLine: flowLine, Persona: persona,
			OnSuccess: onSuccess, OnFailure: onFailure, Line: stepLine}
	case "ParallelStep":
		branches := []ast.RawBranch{}
		branchesLine := stepLine
		var join *ast.RawJoinPolicy
		for p.peek().Type != token.RBRACE {
			fieldLine := p.curLine()
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "branches":
				branchesLine = fieldLine
				if branches, e = p.parseBranches(); e != nil {
					return nil, e
				}
			case "join":
				if join, e = p.parseJoinPolicy(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "ParallelStep", key)
			}
		}
		if join == nil {
			return nil, p.throw("parse/step/missing", "ParallelStep", "join")
		}
		step = ast.ParallelStep{Branches: branches, BranchesLine: branchesLine, Join: *join,
			Line: stepLine}
	default:
		return nil, p.throw("parse/step/kind", kind)
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return step, nil
}

func (p *Parser) parseOutcomes() (map[string]ast.RawStepTarget, *err.Error) {
	outcomes := map[string]ast.RawStepTarget{}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	for p.peek().Type != token.RBRACE {
		label, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		target, e := p.parseStepTarget()
		if e != nil {
			return nil, e
		}
		outcomes[label] = target
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return outcomes, nil
}

func (p *Parser) parseStepTarget() (ast.RawStepTarget, *err.Error) {
	if p.isWord("Terminal") {
		p.advance()
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		outcome, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.Terminal{Outcome: outcome}, nil
	}
	line := p.curLine()
	name, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	return ast.StepRef{Name: name, Line: line}, nil
}

func (p *Parser) parseFailureHandler() (ast.RawFailureHandler, *err.Error) {
	kind, e := p.takeWord()
	if e != nil {
		return nil, e
	}
	switch kind {
	case "Terminate":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		if p.isWord("outcome") {
			p.advance()
			if e := p.expectColon(); e != nil {
				return nil, e
			}
		}
		outcome, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.Terminate{Outcome: outcome}, nil
	case "Compensate":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		compSteps := []ast.RawCompStep{}
		thenOutcome := ""
		for p.peek().Type != token.RPAREN {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "steps":
				if compSteps, e = p.parseCompSteps(); e != nil {
					return nil, e
				}
			case "then":
				if _, e := p.expectWord("Terminal"); e != nil {
					return nil, e
				}
				if e := p.expectLParen(); e != nil {
					return nil, e
				}
				if thenOutcome, e = p.takeWord(); e != nil {
					return nil, e
				}
				if e := p.expectRParen(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "Compensate", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.Compensate{Steps: compSteps, Then: thenOutcome}, nil
	case "Escalate":
		if e := p.expectLParen(); e != nil {
			return nil, e
		}
		toPersona := ""
		next := ""
		for p.peek().Type != token.RPAREN {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "to", "to_persona":
				if toPersona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "next":
				if next, e = p.takeWord(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "Escalate", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRParen(); e != nil {
			return nil, e
		}
		return ast.Escalate{ToPersona: toPersona, Next: next}, nil
	}
	return nil, p.throw("parse/handler/kind", kind)
}

func (p *Parser) parseBranches() ([]ast.RawBranch, *err.Error) {
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	branches := []ast.RawBranch{}
	for p.peek().Type != token.RBRACK {
		branch, e := p.parseBranch()
		if e != nil {
			return nil, e
		}
		branches = append(branches, branch)
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return branches, nil
}

func (p *Parser) parseBranch() (ast.RawBranch, *err.Error) {
	if _, e := p.expectWord("Branch"); e != nil {
		return ast.RawBranch{}, e
	}
	if e := p.expectLBrace(); e != nil {
		return ast.RawBranch{}, e
	}
	id := ""
	entry := ""
	steps := map[string]ast.RawStep{}
	for p.peek().Type != token.RBRACE {
		key, e := p.takeWord()
		if e != nil {
			return ast.RawBranch{}, e
		}
		if e := p.expectColon(); e != nil {
			return ast.RawBranch{}, e
		}
		switch key {
		case "id":
			if id, e = p.takeWord(); e != nil {
				return ast.RawBranch{}, e
			}
		case "entry":
			if entry, e = p.takeWord(); e != nil {
				return ast.RawBranch{}, e
			}
		case "steps":
			if steps, e = p.parseSteps(); e != nil {
				return ast.RawBranch{}, e
			}
		default:
			return ast.RawBranch{}, p.throw("parse/field/unknown", "Branch", key)
		}
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrace(); e != nil {
		return ast.RawBranch{}, e
	}
	return ast.RawBranch{Id: id, Entry: entry, Steps: steps}, nil
}

func (p *Parser) parseJoinPolicy() (*ast.RawJoinPolicy, *err.Error) {
	if _, e := p.expectWord("JoinPolicy"); e != nil {
		return nil, e
	}
	if e := p.expectLBrace(); e != nil {
		return nil, e
	}
	join := &ast.RawJoinPolicy{}
	for p.peek().Type != token.RBRACE {
		key, e := p.takeWord()
		if e != nil {
			return nil, e
		}
		if e := p.expectColon(); e != nil {
			return nil, e
		}
		switch key {
		case "on_all_success":
			if join.OnAllSuccess, e = p.parseStepTarget(); e != nil {
				return nil, e
			}
		case "on_any_failure":
			if join.OnAnyFailure, e = p.parseFailureHandler(); e != nil {
				return nil, e
			}
		case "on_all_complete":
			if p.isWord("null") {
				p.advance()
			} else if join.OnAllComplete, e = p.parseStepTarget(); e != nil {
				return nil, e
			}
		default:
			return nil, p.throw("parse/field/unknown", "JoinPolicy", key)
		}
	}
	if e := p.expectRBrace(); e != nil {
		return nil, e
	}
	return join, nil
}

func (p *Parser) parseCompSteps() ([]ast.RawCompStep, *err.Error) {
	steps := []ast.RawCompStep{}
	if e := p.expectLBrack(); e != nil {
		return nil, e
	}
	for p.peek().Type != token.RBRACK {
		if e := p.expectLBrace(); e != nil {
			return nil, e
		}
		op := ""
		persona := ""
		onFailure := ""
		for p.peek().Type != token.RBRACE {
			key, e := p.takeWord()
			if e != nil {
				return nil, e
			}
			if e := p.expectColon(); e != nil {
				return nil, e
			}
			switch key {
			case "op":
				if op, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "persona":
				if persona, e = p.takeWord(); e != nil {
					return nil, e
				}
			case "on_failure":
				if _, e := p.expectWord("Terminal"); e != nil {
					return nil, e
				}
				if e := p.expectLParen(); e != nil {
					return nil, e
				}
				if onFailure, e = p.takeWord(); e != nil {
					return nil, e
				}
				if e := p.expectRParen(); e != nil {
					return nil, e
				}
			default:
				return nil, p.throw("parse/field/unknown", "comp step", key)
			}
			if p.peek().Type == token.COMMA {
				p.advance()
			}
		}
		if e := p.expectRBrace(); e != nil {
			return nil, e
		}
		steps = append(steps, ast.RawCompStep{Op: op, Persona: persona, OnFailure: onFailure})
		if p.peek().Type == token.COMMA {
			p.advance()
		}
	}
	if e := p.expectRBrack(); e != nil {
		return nil, e
	}
	return steps, nil
}
